package main

import (
	"fmt"

	"github.com/sanity-io/litter"

	"github.com/kevinxiao27/yata-text/ol"
	"github.com/kevinxiao27/yata-text/yt"
)

func push(doc *yt.Doc, index int, s string) {
	err := doc.Transact(func(txn *yt.Transaction) error {
		return doc.GetText("content").Insert(txn, index, s)
	})
	if err != nil {
		panic(err)
	}
}

func sync(from, to *yt.Doc) {
	if err := to.ApplyUpdate(from.EncodeStateAsUpdate(to.StateVector())); err != nil {
		panic(err)
	}
}

func main() {
	litter.Config.HidePrivateFields = false
	doc1 := yt.NewDoc(yt.WithPeerID(1))
	doc2 := yt.NewDoc(yt.WithPeerID(26))

	doc1.OnUpdate(func(u *ol.Update) {
		fmt.Println("doc1 produced:")
		litter.Dump(u)
	})
	if _, err := doc2.GetText("content").Observe(func(e *yt.TextEvent) {
		fmt.Printf("doc2 %v delta: %v\n", e.Path(), e.Delta())
	}); err != nil {
		panic(err)
	}

	push(doc1, 0, "hi")
	push(doc2, 0, "yoooo")

	sync(doc1, doc2)
	sync(doc2, doc1)

	result1 := doc1.GetText("content").String()
	fmt.Printf("Result: '%s'\n", result1)

	result2 := doc2.GetText("content").String()
	fmt.Printf("Result: '%s'\n", result2)

	if result1 == result2 {
		fmt.Println("Replicas match")
	} else {
		fmt.Println("Replicas differ")
	}

	fmt.Println(doc1.GetText("content").Dump())
}
