package ipfs

import (
	"flag"
	"os"
	"strings"

	"xdao.co/lcm/storage"
	"xdao.co/lcm/storage/casregistry"
)

var (
	flagBin  string
	flagPath string
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "ipfs",
		Description: "Kubo CLI-backed CAS (local IPFS repo)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "", "Path to the ipfs binary (for --backend=ipfs); empty uses $PATH")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS_PATH repo directory (for --backend=ipfs); empty uses the environment")
		},
		Open: func() (storage.CAS, func() error, error) {
			opts := Options{Bin: strings.TrimSpace(flagBin)}
			if p := strings.TrimSpace(flagPath); p != "" {
				opts.Env = append(os.Environ(), "IPFS_PATH="+p)
			}
			return New(opts), nil, nil
		},
	})
}
