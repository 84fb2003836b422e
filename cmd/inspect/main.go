package main

import (
	"adoption-chat/infrastructure/storage"
	"adoption-chat/presentation"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
)

// inspect dumps the messages of a badger store, for debugging only.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Index keys live under idx:, scanning msg: skips them.
	prefix := flag.String("prefix", storage.MessagePrefix, "Prefix to scan")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := presentation.NewTable(os.Stdout, "Key", "Conversation", "Sender", "Created", "Content")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				message, err := storage.DecodeMessage(v)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append([]string{
					key,
					string(message.ConversationID),
					message.SenderID,
					message.CreatedAt.UTC().Format(time.RFC3339),
					message.Content,
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while reading Badger: ", err)
	}

	table.Render()
	fmt.Printf("\n%d message(s) under %q\n", count, *prefix)
}
