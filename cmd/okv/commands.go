package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/andreyvit/okv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "okv",
		Short:         "Inspect and edit an ordered key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		newGetCmd(),
		newSetCmd(),
		newDelCmd(),
		newLsCmd(),
		newCountCmd(),
		newClearCmd(),
		newDumpCmd(),
		newRestoreCmd(),
		newStatsCmd(),
	)
	return root
}

// withStore opens the configured store for the duration of f.
func withStore(cmd *cobra.Command, f func(s *okv.Store) error) (err error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := cfg.openStore()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return f(s)
}

// parseKeyArg accepts either a rendered tuple like ("user", 1u64) or a bare
// word, which becomes a one-element text key.
func parseKeyArg(arg string) (okv.Key, error) {
	if strings.HasPrefix(strings.TrimSpace(arg), "(") {
		return okv.ParseKey(arg)
	}
	return okv.NewKey(arg)
}

func parseValueArg(arg, typ string) (okv.Value, error) {
	switch typ {
	case "", "text":
		return okv.TextValue(arg), nil
	case "int":
		i, err := strconv.ParseInt(arg, 10, 64)
		return okv.IntValue(i), err
	case "uint":
		u, err := strconv.ParseUint(arg, 10, 64)
		return okv.UintValue(u), err
	case "float":
		f, err := strconv.ParseFloat(arg, 64)
		return okv.FloatValue(f), err
	case "bool":
		b, err := strconv.ParseBool(arg)
		return okv.BoolValue(b), err
	case "null":
		return okv.NullValue(), nil
	case "tagged":
		return okv.ParseValue(arg)
	case "json":
		return plainJSONValue(arg)
	default:
		return okv.Value{}, fmt.Errorf("unknown value type %q", typ)
	}
}

// plainJSONValue converts untagged JSON. Whole numbers become ints, others
// floats.
func plainJSONValue(arg string) (okv.Value, error) {
	dec := json.NewDecoder(strings.NewReader(arg))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return okv.Value{}, err
	}
	return okv.ValueOf(normalizeJSON(raw))
}

func normalizeJSON(raw any) any {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i, el := range v {
			v[i] = normalizeJSON(el)
		}
		return v
	case map[string]any:
		for k, el := range v {
			v[k] = normalizeJSON(el)
		}
		return v
	default:
		return v
	}
}

func newGetCmd() *cobra.Command {
	var tagged bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(s *okv.Store) error {
				v, ok, err := s.Get(key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%v: not found", key)
				}
				return printValue(cmd.OutOrStdout(), v, tagged)
			})
		},
	}
	cmd.Flags().BoolVar(&tagged, "json", false, "print the value as type-tagged JSON")
	return cmd
}

func printValue(w io.Writer, v okv.Value, tagged bool) error {
	if tagged {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	_, err := fmt.Fprintln(w, v.String())
	return err
}

func newSetCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value under a key",
		Long: `Store a value under a key. VALUE is text unless --type says otherwise:
int, uint, float, bool, null, json (plain JSON) or tagged (the dump format).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKeyArg(args[0])
			if err != nil {
				return err
			}
			v, err := parseValueArg(args[1], typ)
			if err != nil {
				return fmt.Errorf("value: %w", err)
			}
			return withStore(cmd, func(s *okv.Store) error {
				return s.Set(key, v)
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "text", "value type")
	return cmd
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "del KEY...",
		Aliases: []string{"rm"},
		Short:   "Delete keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]okv.Key, len(args))
			for i, arg := range args {
				k, err := parseKeyArg(arg)
				if err != nil {
					return err
				}
				keys[i] = k
			}
			return withStore(cmd, func(s *okv.Store) error {
				for _, k := range keys {
					if err := s.Delete(k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

type queryFlags struct {
	start, after, end, through string
	limit                      int
}

func (qf *queryFlags) add(cmd *cobra.Command) {
	cmd.Flags().StringVar(&qf.start, "start", "", "inclusive lower bound")
	cmd.Flags().StringVar(&qf.after, "after", "", "exclusive lower bound")
	cmd.Flags().StringVar(&qf.end, "end", "", "exclusive upper bound")
	cmd.Flags().StringVar(&qf.through, "through", "", "inclusive upper bound")
	cmd.Flags().IntVarP(&qf.limit, "limit", "n", 0, "stop after this many entries")
	cmd.MarkFlagsMutuallyExclusive("start", "after")
	cmd.MarkFlagsMutuallyExclusive("end", "through")
}

func (qf *queryFlags) build(s *okv.Store, args []string) (okv.Query[okv.Value], error) {
	q := s.List().Limit(qf.limit)
	if len(args) > 0 {
		k, err := parseKeyArg(args[0])
		if err != nil {
			return q, err
		}
		q = q.Prefix(k)
	}
	bounds := []struct {
		arg   string
		apply func(any) okv.Query[okv.Value]
	}{
		{qf.start, func(k any) okv.Query[okv.Value] { return q.Start(k) }},
		{qf.after, func(k any) okv.Query[okv.Value] { return q.After(k) }},
		{qf.end, func(k any) okv.Query[okv.Value] { return q.End(k) }},
		{qf.through, func(k any) okv.Query[okv.Value] { return q.Through(k) }},
	}
	for _, b := range bounds {
		if b.arg == "" {
			continue
		}
		k, err := parseKeyArg(b.arg)
		if err != nil {
			return q, err
		}
		q = b.apply(k)
	}
	return q, nil
}

func newLsCmd() *cobra.Command {
	var qf queryFlags
	var keysOnly, tagged bool
	cmd := &cobra.Command{
		Use:     "ls [PREFIX]",
		Aliases: []string{"list"},
		Short:   "List entries in key order",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *okv.Store) error {
				q, err := qf.build(s, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if keysOnly {
					for k, err := range q.Keys() {
						if err != nil {
							return err
						}
						fmt.Fprintln(out, k.String())
					}
					return nil
				}

				var failed int
				for e, err := range q.Iter() {
					var entryErr *okv.EntryError
					if errors.As(err, &entryErr) {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%v: %v\n", entryErr.Key, entryErr.Err)
						continue
					} else if err != nil {
						return err
					}
					fmt.Fprintf(out, "%v = ", e.Key)
					if err := printValue(out, e.Value, tagged); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d entries could not be decoded", failed)
				}
				return nil
			})
		},
	}
	qf.add(cmd)
	cmd.Flags().BoolVarP(&keysOnly, "keys", "k", false, "print keys only")
	cmd.Flags().BoolVar(&tagged, "json", false, "print values as type-tagged JSON")
	return cmd
}

func newCountCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "count [PREFIX]",
		Short: "Count entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *okv.Store) error {
				q, err := qf.build(s, args)
				if err != nil {
					return err
				}
				n, err := q.Count()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	qf.add(cmd)
	return cmd
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return withStore(cmd, func(s *okv.Store) error {
				return s.Clear()
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func newDumpCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every entry as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *okv.Store) error {
				if output == "" || output == "-" {
					return s.Dump(cmd.OutOrStdout())
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := s.Dump(f); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [FILE]",
		Short: "Load entries written by dump",
		Long:  "Load entries written by dump. Reads stdin when FILE is omitted or is -. Existing entries are kept unless the dump overwrites them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) > 0 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			b, err := cfg.openBackend()
			if err != nil {
				return err
			}
			s, err := okv.Restore(in, b, cfg.storeOptions())
			if err != nil {
				b.Close()
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "restored %d entries\n", s.Stats().Sets)
			return s.Close()
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Scan the whole store and report what the scan saw",
		Long: `Scan the whole store once and print the operation counters of that scan:
how many entries were read and how many failed to decode. The counters
belong to this process only; long-running programs export them through
the okvmetrics package instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *okv.Store) error {
				for _, err := range s.List().Iter() {
					if err != nil && !errors.As(err, new(*okv.EntryError)) {
						return err
					}
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), s.Stats().String())
				return err
			})
		},
	}
}
