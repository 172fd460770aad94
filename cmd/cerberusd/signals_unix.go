// signals_unix.go: Statistics dump signal
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package main

import (
	"os"
	"syscall"
)

var dumpSignals = []os.Signal{syscall.SIGUSR1}
