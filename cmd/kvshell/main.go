// Package main provides kvshell, a line-oriented shell over a store.
//
// Usage:
//
//	kvshell --dir=<path>
//
// Commands (one per line on stdin):
//
//	get <key>
//	put <key> <value>
//	delete <key>
//	len
//	exit
//
// Every acknowledged put/delete is durable before the next prompt is shown,
// so killing the process at any point never loses an acknowledged write.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	kvengine "github.com/CypherGuy/kv-engine"
)

var (
	dirPath = flag.String("dir", "", "Path to the store directory (required)")
	quiet   = flag.Bool("quiet", false, "Suppress the prompt (for piped input)")
)

func main() {
	flag.Parse()

	if *dirPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := kvengine.Open(*dirPath, kvengine.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for prompt(); scanner.Scan(); prompt() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := run(store, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: read stdin: %v\n", err)
		os.Exit(1)
	}
}

func prompt() {
	if !*quiet {
		fmt.Print("> ")
	}
}

func run(store *kvengine.Store, line string) error {
	fields := strings.SplitN(line, " ", 3)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		value, err := store.Get([]byte(fields[1]))
		if errors.Is(err, kvengine.ErrNotFound) {
			fmt.Println("(not found)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", value)
		return nil

	case "put":
		if len(fields) != 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		if err := store.Put([]byte(fields[1]), []byte(fields[2])); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case "delete", "del":
		if len(fields) != 2 {
			return fmt.Errorf("usage: delete <key>")
		}
		if err := store.Delete([]byte(fields[1])); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case "len":
		n, err := store.Len()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	default:
		return fmt.Errorf("unknown command %q (get, put, delete, len, exit)", cmd)
	}
}
