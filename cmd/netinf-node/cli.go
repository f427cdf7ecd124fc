package main

import (
    "flag"
    "time"
)

// Options holds CLI options for the node.
type Options struct {
    ConfigPath string
    Get        string
    Put        string
    Data       string
    Peer       string
    Timeout    time.Duration
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("netinf-node", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Get, "get", "", "Retrieve the object with this id, print its payload and exit")
    fs.StringVar(&opts.Put, "put", "", "Publish an object with this id and exit")
    fs.StringVar(&opts.Data, "data", "-", "Payload file for -put (- reads stdin)")
    fs.StringVar(&opts.Peer, "peer", "", "Peer id to ask (default: any discovered peer)")
    fs.DurationVar(&opts.Timeout, "timeout", 0, "Overall request timeout (default: provider.timeout_ms)")
    _ = fs.Parse(args)
    return opts
}
