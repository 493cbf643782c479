package main

import (
	"io"
	"log"
	"os"
)

var _logInfo = log.New(io.Discard, "INFO\t", log.Ldate|log.Ltime)
var _logWarn = log.New(os.Stderr, "WARN\t", log.Ldate|log.Ltime|log.Lshortfile)
var _logError = log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

// setVerbose enables info level output on stderr.
func setVerbose(on bool) {
	if on {
		_logInfo.SetOutput(os.Stderr)
	} else {
		_logInfo.SetOutput(io.Discard)
	}
}

func LogInfo(msg string, args ...interface{}) {
	_logInfo.Printf(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	_logWarn.Printf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	_logError.Printf(msg, args...)
}
