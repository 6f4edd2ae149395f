// Command cli is an interactive RESP client: it reads lines from
// standard input and speaks them to a blink worker or router. Grounded
// on original_source/src/blink_cli.cpp and spec.md §6's CLI contract.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/blinkdb/blink/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6380", "blink server address")
	flag.Parse()

	c := client.New(*addr)
	defer c.Close()

	if _, _, err := c.Get("__blink_cli_ping__"); err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		verb := strings.ToUpper(fields[0])

		switch verb {
		case "EXIT":
			return
		case "SET":
			if len(fields) < 3 {
				fmt.Println("usage: SET <key> <value>")
				continue
			}
			if err := c.Set(fields[1], strings.Join(fields[2:], " ")); err != nil {
				fmt.Printf("(error) %v\n", err)
				continue
			}
			fmt.Println("OK")
		case "GET":
			if len(fields) < 2 {
				fmt.Println("usage: GET <key>")
				continue
			}
			v, ok, err := c.Get(fields[1])
			if err != nil {
				fmt.Printf("(error) %v\n", err)
				continue
			}
			if !ok {
				fmt.Println("(nil)")
				continue
			}
			fmt.Println(v)
		case "DEL":
			if len(fields) < 2 {
				fmt.Println("usage: DEL <key>")
				continue
			}
			deleted, err := c.Del(fields[1])
			if err != nil {
				fmt.Printf("(error) %v\n", err)
				continue
			}
			if deleted {
				fmt.Println("(integer) 1")
			} else {
				fmt.Println("(integer) 0")
			}
		default:
			fmt.Println("usage: SET <k> <v> | GET <k> | DEL <k> | EXIT")
		}
	}
}
