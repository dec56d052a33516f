package irfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"airgen/internal/fuir"
)

// buildNamespace seeds the name-based build ids.
var buildNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("airgen/irfile"))

func encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildID derives the id from the payload, so equal IRs get equal ids.
func buildID(f *File) (string, error) {
	saved := f.BuildID
	f.BuildID = ""
	payload, err := encode(f)
	f.BuildID = saved
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(buildNamespace, payload).String(), nil
}

// Encode stamps f with its build id and returns the msgpack document.
func Encode(f *File) ([]byte, error) {
	id, err := buildID(f)
	if err != nil {
		return nil, fmt.Errorf("irfile: encode: %w", err)
	}
	f.BuildID = id
	data, err := encode(f)
	if err != nil {
		return nil, fmt.Errorf("irfile: encode: %w", err)
	}
	return data, nil
}

// Marshal serializes ir in one step.
func Marshal(ctx context.Context, ir fuir.IR) ([]byte, error) {
	f, err := FromIR(ctx, ir)
	if err != nil {
		return nil, err
	}
	return Encode(f)
}

// Decode parses and checks a document produced by Encode.
func Decode(data []byte) (*File, error) {
	var head struct {
		Magic  string `msgpack:"magic"`
		Schema uint16 `msgpack:"schema"`
	}
	if err := msgpack.Unmarshal(data, &head); err != nil || head.Magic != Magic {
		return nil, ErrBadMagic
	}
	if head.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrSchema, head.Schema, SchemaVersion)
	}
	f := &File{}
	if err := msgpack.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := check(f); err != nil {
		return nil, err
	}
	return f, nil
}

func check(f *File) error {
	nc, ns := len(f.Clazzes), len(f.Sites)
	inClazzes := func(v int32) bool {
		id := clazzID(v)
		return id.IsValid() && int(id-fuir.ClazzBase) < nc
	}
	if !inClazzes(f.Main) || !inClazzes(f.Universe) {
		return fmt.Errorf("%w: main or universe out of range", ErrCorrupt)
	}
	for i := range f.Sites {
		if !inClazzes(f.Sites[i].Clazz) {
			return fmt.Errorf("%w: site %d owned by unknown clazz %d", ErrCorrupt, i, f.Sites[i].Clazz)
		}
	}
	for i := range f.Clazzes {
		if c := siteID(f.Clazzes[i].Code); c.IsValid() && int(c-fuir.SiteBase) >= ns {
			return fmt.Errorf("%w: code of clazz %d out of range", ErrCorrupt, i)
		}
	}
	want, err := buildID(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if f.BuildID != want {
		return fmt.Errorf("%w: build id %s does not match the payload", ErrCorrupt, f.BuildID)
	}
	return nil
}

// Write stores f at path atomically.
func Write(path string, f *File) (err error) {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".airgen-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// atomic replace
	return os.Rename(tmp.Name(), path)
}

// Read decodes a document from r.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Load reads the IR file at path as a Library.
func Load(path string) (*Library, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewLibrary(f), nil
}
