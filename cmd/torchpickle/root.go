// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "torchpickle",
	Short: "Inspect pickle streams and PyTorch checkpoint containers",
	Long: `torchpickle decodes Python pickle streams into inspectable value graphs
and locates tensor storages inside PyTorch ZIP checkpoints, without
executing any code the streams reference and without loading tensor
payloads into memory.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
