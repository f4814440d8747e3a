package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"gopkg.in/yaml.v3"

	"github.com/iancoleman/crdt/host"
	"github.com/iancoleman/crdt/store"
	"github.com/iancoleman/crdt/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("new",
		readline.PcItem("counter"),
		readline.PcItem("set"),
		readline.PcItem("reg"),
	),
	readline.PcItem("inc"),
	readline.PcItem("dec"),
	readline.PcItem("add"),
	readline.PcItem("rm"),
	readline.PcItem("put"),
	readline.PcItem("show"),
	readline.PcItem("clock"),
	readline.PcItem("sync"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

type Config struct {
	Source   uint64 `yaml:"source"`    // 0 picks a random one
	Dir      string `yaml:"dir"`       // empty runs memory-only
	Sync     bool   `yaml:"sync"`      // fsync every merge
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

func LoadConfig(path string) (cfg Config, err error) {
	cfg.LogLevel = "info"
	if path == "" {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = yaml.Unmarshal(raw, &cfg)
	return
}

func (cfg Config) Level() slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const usage = `commands:
  new counter|set|reg KEY   create a replicated object
  inc KEY / dec KEY         bump a counter
  add KEY M...  rm KEY M... mutate a set
  put KEY VALUE             write a register
  show KEY                  print an object's state
  clock                     print the replica and peer clocks
  sync                      ship pending ops to the in-memory peer
  exit`

func showObject(obj host.Object) {
	switch o := obj.(type) {
	case *host.Counter:
		fmt.Println(o.Value())
	case *host.Set:
		fmt.Println(strings.Join(o.Values(), " "))
	case *host.Register:
		val, marker := o.Value()
		fmt.Printf("%q @%d\n", val, marker)
	}
}

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-2)
	}
	log := utils.NewDefaultLogger(cfg.Level())

	var db *store.Store
	if cfg.Dir != "" {
		db, err = store.Open(store.Options{
			Path:  cfg.Dir,
			Folds: host.StockFolds(),
			Sync:  cfg.Sync,
		})
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(-1)
		}
		defer func() { _ = db.Close() }()
	}

	src := cfg.Source
	if src == 0 {
		src = host.NewSource()
	}
	replica, err := host.New(src, log, db)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	// a second memory-only replica to sync against
	peer, err := host.New(host.NewSource(), log, nil)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/crdt-repl.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	commit := func(key string, body []byte) error {
		_, err := replica.Commit(key, body)
		return err
	}

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		args := strings.Fields(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		cmd := args[0]
		args = args[1:]
		err = nil
		switch cmd {
		case "help":
			fmt.Println(usage)
		case "exit", "quit":
			os.Exit(0)
		case "new":
			if len(args) != 2 {
				fmt.Println("usage: new counter|set|reg KEY")
				continue
			}
			mk := map[string]func() host.Object{
				"counter": func() host.Object { return host.NewCounter() },
				"set":     func() host.Object { return host.NewSet() },
				"reg":     func() host.Object { return host.NewRegister() },
			}[args[0]]
			if mk == nil {
				fmt.Printf("unknown kind %q\n", args[0])
				continue
			}
			if err = replica.Register(args[1], mk()); err == nil {
				err = peer.Register(args[1], mk())
			}
		case "inc", "dec":
			if len(args) != 1 {
				fmt.Println("usage: inc KEY")
				continue
			}
			obj, ok := replica.Object(args[0])
			ctr, isCtr := obj.(*host.Counter)
			if !ok || !isCtr {
				fmt.Printf("no counter %q\n", args[0])
				continue
			}
			body := ctr.IncOp(replica.Source())
			if cmd == "dec" {
				body = ctr.DecOp(replica.Source())
			}
			err = commit(args[0], body)
		case "add", "rm":
			if len(args) < 2 {
				fmt.Println("usage: add KEY MEMBER...")
				continue
			}
			obj, ok := replica.Object(args[0])
			set, isSet := obj.(*host.Set)
			if !ok || !isSet {
				fmt.Printf("no set %q\n", args[0])
				continue
			}
			body := set.AddOp(replica.Source(), args[1:]...)
			if cmd == "rm" {
				body = set.RemoveOp(args[1:]...)
			}
			err = commit(args[0], body)
		case "put":
			if len(args) < 2 {
				fmt.Println("usage: put KEY VALUE")
				continue
			}
			obj, ok := replica.Object(args[0])
			reg, isReg := obj.(*host.Register)
			if !ok || !isReg {
				fmt.Printf("no register %q\n", args[0])
				continue
			}
			err = commit(args[0], reg.SetOp(strings.Join(args[1:], " ")))
		case "show":
			for _, key := range args {
				obj, ok := replica.Object(key)
				if !ok {
					fmt.Printf("no object %q\n", key)
					continue
				}
				showObject(obj)
			}
		case "clock":
			fmt.Printf("replica %s\npeer    %s\n", replica.Clock(), peer.Clock())
		case "sync":
			pending, ferr := replica.Feed()
			if ferr != nil {
				err = ferr
				break
			}
			if err = peer.Drain(pending); err == nil {
				fmt.Printf("shipped %d ops\n", len(pending))
			}
		default:
			_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}

		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}
}
