// Package version хранит сведения о сборке, заполняемые через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

func GetVersion() string { return version }

func GetCommit() string { return commit }

func GetDate() string { return date }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
