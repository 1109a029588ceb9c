// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/torchpickle/pickle"
	"github.com/spf13/cobra"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file.pkl>",
	Short: "Decode a pickle file and print its value graph",
	Long: `Decodes a raw pickle stream into a value graph and prints it as
indented text. Nothing referenced by the stream is ever executed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", args[0], err)
			os.Exit(1)
		}

		root, err := pickle.Decode(data)
		if err != nil {
			fmt.Printf("Error decoding %s: %v\n", args[0], err)
			os.Exit(1)
		}

		fmt.Println(pickle.Format(root))
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
