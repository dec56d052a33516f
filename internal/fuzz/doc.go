
// Package fuzztests houses Go fuzz harnesses for program descriptions. They
// feed arbitrary bytes through the description loader and the whole pipeline
// to guard against panics and runaway reachability.
//
// Назначение: загружать байты как YAML-описание и прогонять их через
// reach/layout/emit/serialize в памяти.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
//
// Зависимости: internal/progdesc, internal/pipeline, internal/diag,
// internal/testkit.

package fuzztests
