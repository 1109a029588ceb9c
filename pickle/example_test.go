// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pickle_test

import (
	"fmt"
	"log"

	"github.com/nlpodyssey/torchpickle/pickle"
)

func ExampleDecode() {
	data := []byte("\x80\x04}(\x8c\x04name\x8c\x03net\x8c\x05epochK\x03u.")

	v, err := pickle.Decode(data)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(pickle.Format(v))

	// Output:
	// Dict(
	//   "name"
	//   "net"
	//   "epoch"
	//   3
	// )
}

func ExampleDictItems() {
	v, err := pickle.Decode([]byte("}(\x8c\x01aK\x01\x8c\x01bK\x02u."))
	if err != nil {
		log.Fatal(err)
	}

	items, err := pickle.DictItems(v.(*pickle.Seq))
	if err != nil {
		log.Fatal(err)
	}

	for _, kv := range items {
		fmt.Printf("%s = %s\n", pickle.Format(kv[0]), pickle.Format(kv[1]))
	}

	// Output:
	// "a" = 1
	// "b" = 2
}
