//go:build !nogpu

package main

import (
	_ "github.com/gogpu/gpufilter/backend/native"
)
