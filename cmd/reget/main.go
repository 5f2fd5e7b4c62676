package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/justredis/goredis"
)

var (
	addrFlag = flag.String("addr", "localhost:6379", "Redis node `address`.")
	authFlag = flag.Bool("auth", false, "Reads a password from the standard input.")

	rawFlag       = flag.Bool("raw", false, "Output values as is, instead of quoted strings.")
	delimitFlag   = flag.String("delimit", "\n", "The output `separator` between values.")
	terminateFlag = flag.String("terminate", "\n", "The output `suffix` on the last value.")
	nullFlag      = flag.String("null", "<null>", "The output `value` for key absence.")
)

func main() {
	flag.Parse()
	keys := flag.Args()
	if len(keys) == 0 {
		os.Stderr.WriteString(`NAME
	reget — resolve Redis content

SYNOPSIS
	reget [ options ] [ key ... ]

DESCRIPTION
	For each operand, reget prints the associated value according to
	the node.

	The following options are available:

`)
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := redis.Options{Address: *addrFlag}
	if *authFlag {
		password, _ := io.ReadAll(os.Stdin)
		opts.Password = string(password)
	}

	router, err := redis.NewRouter(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reget: connect:", err)
		os.Exit(4)
	}
	defer router.Close()

	print(router, keys)
}

func print(router redis.Router, keys []string) {
	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, "MGET")
	for _, k := range keys {
		args = append(args, k)
	}

	v, err := router.Call(context.Background(), redis.NewCommand(args...))
	if err != nil {
		fmt.Fprintln(os.Stderr, "reget: MGET with", err)
		os.Exit(255)
	}

	w := os.Stdout
	for i, e := range v.Array {
		switch {
		case e.IsNull():
			w.WriteString(*nullFlag)
		case *rawFlag:
			w.Write(e.Bytes)
		default:
			w.WriteString(strconv.QuoteToGraphic(string(e.Bytes)))
		}

		if i < len(v.Array)-1 {
			w.WriteString(*delimitFlag)
		} else {
			w.WriteString(*terminateFlag)
		}
	}
}
