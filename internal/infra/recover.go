package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f and restarts it after a panic. A negative maxPanics restarts forever;
// once the limit is spent the process exits.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf(`Job "%s" panics with message: %s, %s`, id, err, identifyPanic())
			if maxPanics == 0 {
				log.Fatalf(`Panics limit exceeded for job "%s", exiting`, id)
			}
			if maxPanics > 0 {
				maxPanics--
				log.Debugf(`Recovering job "%s" with max panics left: %d`, id, maxPanics)
			} else {
				log.Debugf(`Recovering job "%s"`, id)
			}
			go GoRecoverable(maxPanics, id, f)
		}
	}()
	f()
}

// Safe runs f once and swallows a panic, reporting whether one happened.
func Safe(id string, f func()) (panicked bool) {
	defer func() {
		if err := recover(); err != nil {
			log.WithFields(log.Fields{
				"job":    id,
				"panic":  fmt.Sprint(err),
				"source": identifyPanic(),
			}).Error("job panicked")
			panicked = true
		}
	}()
	f()
	return false
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
