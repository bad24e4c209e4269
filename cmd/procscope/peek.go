package main

import (
	"encoding/hex"
	"strconv"

	"procscope/hexdump"
	"procscope/process"

	"github.com/spf13/cobra"
)

type peekResult struct {
	Address  process.ProcessMemoryAddress `json:"address"`
	Data     string                       `json:"data"`
	Pointers []hexdump.Pointer            `json:"pointers,omitempty"`
}

func newPeekCommand(a *app) *cobra.Command {
	var (
		size  uint
		color bool
	)
	cmd := &cobra.Command{
		Use:   "peek <pid> <address>",
		Short: "Hex dump memory of a process",
		Long: `peek reads memory out of a running process and prints it as hex.
Aligned words that point into a mapped region of the process are marked
with the region they point to.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			addr, err := parseAddress(args[1])
			if err != nil {
				return err
			}

			data, err := a.client.ReadMemory(pid, addr, process.ProcessMemorySize(size))
			if err != nil {
				return err
			}

			opts := hexdump.Options{
				Base:        uint64(addr),
				PointerSize: strconv.IntSize / 8,
				Color:       color,
			}
			if regions, err := a.client.MemoryMaps(pid); err == nil {
				opts.Regions = regions
			} else if a.verbose {
				a.log.Warn("No memory map, pointers not marked: ", err)
			}

			if a.json {
				return a.emit(peekResult{
					Address:  addr,
					Data:     hex.EncodeToString(data),
					Pointers: hexdump.Pointers(data, opts),
				}, nil)
			}
			return hexdump.Dump(a.out, data, opts)
		},
	}
	cmd.Flags().UintVarP(&size, "size", "n", 256, "number of bytes to read")
	cmd.Flags().BoolVar(&color, "color", false, "colorize the dump")
	return cmd
}
