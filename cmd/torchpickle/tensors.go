// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/torchpickle"
	"github.com/spf13/cobra"
)

// tensorsCmd represents the tensors command
var tensorsCmd = &cobra.Command{
	Use:   "tensors <checkpoint.pt>",
	Short: "List the tensors of a PyTorch checkpoint",
	Long: `Resolves the tensor descriptors of a PyTorch ZIP checkpoint: name,
device, element type, shape, stride and the absolute byte offset of
each tensor's data within the file. Payloads are not loaded unless
--preview is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		preview, _ := cmd.Flags().GetInt("preview")

		c, err := torchpickle.OpenContainer(args[0])
		if err != nil {
			fmt.Printf("Error opening %s: %v\n", args[0], err)
			os.Exit(1)
		}
		defer c.Close()

		tensors, err := torchpickle.ReadTensors(c)
		if err != nil {
			fmt.Printf("Error resolving tensors of %s: %v\n", args[0], err)
			os.Exit(1)
		}

		for _, t := range tensors {
			fmt.Printf("%s: %s%v stride=%v device=%s grad=%v storage=%s[%d] offset=%d\n",
				t.Name, t.DType, t.Shape, t.Stride, t.Device, t.RequiresGrad,
				t.Storage, t.StorageLen, t.AbsoluteOffset)

			if preview <= 0 {
				continue
			}
			data, err := t.ReadData(c)
			if err != nil {
				fmt.Printf("  preview unavailable: %v\n", err)
				continue
			}
			values, err := torchpickle.Elements(t.DType, data, preview)
			if err != nil {
				fmt.Printf("  preview unavailable: %v\n", err)
				continue
			}
			fmt.Printf("  data: %v\n", values)
		}
	},
}

func init() {
	tensorsCmd.Flags().Int("preview", 0, "print the first N elements of each tensor")
	rootCmd.AddCommand(tensorsCmd)
}
