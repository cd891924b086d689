// Command okv inspects and edits a persistent okv store.
//
//	okv --backend bolt --path data.db set '("user", 1u64)' alice
//	okv --path data.db ls '("user")'
//	okv --path data.db dump > backup.json
//
// Settings come from flags, OKV_* environment variables and an optional
// config file (--config), in that order of precedence.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "okv:", err)
		os.Exit(1)
	}
}
