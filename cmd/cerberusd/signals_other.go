// signals_other.go: Platforms without SIGUSR1
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package main

import "os"

var dumpSignals []os.Signal
