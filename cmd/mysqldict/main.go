package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/sqldef/dictsql/dict"
	"github.com/sqldef/dictsql/dictconfig"
	"github.com/sqldef/dictsql/dictserver"
	"github.com/sqldef/dictsql/sqldriver"
	"github.com/sqldef/dictsql/util"
)

var version string

type cliOptions struct {
	User           string `short:"u" long:"user" description:"MySQL user name" default:"root"`
	Password       string `short:"p" long:"password" description:"MySQL user password, overridden by $MYSQL_PWD"`
	Host           string `short:"h" long:"host" description:"MySQL server host" default:"127.0.0.1"`
	Port           int    `short:"P" long:"port" description:"MySQL server port" default:"3306"`
	Socket         string `short:"S" long:"socket" description:"Unix socket to use for the connection"`
	SslMode        string `long:"ssl-mode" description:"SSL connection mode" default:"preferred"`
	SslCa          string `long:"ssl-ca" description:"File containing trusted SSL Certificate Authorities"`
	Prompt         bool   `long:"password-prompt" description:"Force a password prompt"`
	Config         string `long:"config" description:"YAML map-list config" required:"true"`
	TablePrefix    string `long:"table-prefix" description:"Prefix applied to every map's table name"`
	Username       string `long:"as-user" description:"Username used for priv/ paths"`
	Get            string `long:"get" description:"Look up KEY"`
	Set            string `long:"set" description:"Set KEY=VALUE"`
	ExpireSeconds  int64  `long:"expire" description:"Expiry in seconds for --set"`
	Unset          string `long:"unset" description:"Delete KEY"`
	Inc            string `long:"inc" description:"Increment KEY=DELTA"`
	Iterate        string `long:"iterate" description:"Iterate under PATH"`
	Recurse        bool   `long:"recurse" description:"Iterate recursively"`
	ExactKey       bool   `long:"exact-key" description:"Iterate exact-key only (no recursion into children)"`
	NoValue        bool   `long:"no-value" description:"Skip fetching values while iterating"`
	Limit          int    `long:"limit" description:"Max rows to iterate" default:"-1"`
	Help           bool   `long:"help" description:"Show this help"`
	Version        bool   `long:"version" description:"Show this version"`
}

func parseOptions(args []string) (*cliOptions, string) {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options] db_name"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if password, ok := os.LookupEnv("MYSQL_PWD"); ok {
		opts.Password = password
	}
	if opts.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println()
		opts.Password = string(pass)
	}

	var dbName string
	if len(rest) == 1 {
		dbName = rest[0]
	} else if len(rest) > 1 {
		fmt.Printf("Multiple databases given: %v\n\n", rest)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}
	return &opts, dbName
}

func main() {
	util.InitSlog()
	opts, dbName := parseOptions(os.Args[1:])

	cfg, err := dictconfig.Load(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	driver := sqldriver.NewMySQL(sqldriver.Config{
		Host:        opts.Host,
		Port:        opts.Port,
		User:        opts.User,
		Password:    opts.Password,
		DbName:      dbName,
		Socket:      opts.Socket,
		SslMode:     opts.SslMode,
		SslCa:       opts.SslCa,
		TablePrefix: opts.TablePrefix,
	})

	svc := dictserver.New(driver, cfg.Maps, 4, dict.StdoutLogger{}, nil)
	ctx := context.Background()
	if err := svc.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer svc.Deinit()

	runAction(ctx, svc, opts)
}

func runAction(ctx context.Context, svc *dictserver.Service, opts *cliOptions) {
	switch {
	case opts.Get != "":
		row, err := svc.Lookup(ctx, opts.Username, opts.Get)
		if err != nil {
			log.Fatal(err)
		}
		if !row.Found {
			fmt.Println("(missing)")
			return
		}
		fmt.Println(strings.Join(row.Values, "\t"))

	case opts.Set != "":
		key, value, ok := strings.Cut(opts.Set, "=")
		if !ok {
			log.Fatal("--set expects KEY=VALUE")
		}
		tx, err := svc.TransactionInit(ctx, opts.Username)
		if err != nil {
			log.Fatal(err)
		}
		if err := tx.Set(key, value, opts.ExpireSeconds); err != nil {
			log.Fatal(err)
		}
		status, err := tx.Commit()
		reportCommit(status, err)

	case opts.Unset != "":
		tx, err := svc.TransactionInit(ctx, opts.Username)
		if err != nil {
			log.Fatal(err)
		}
		if err := tx.Unset(opts.Unset); err != nil {
			log.Fatal(err)
		}
		status, err := tx.Commit()
		reportCommit(status, err)

	case opts.Inc != "":
		key, deltaStr, ok := strings.Cut(opts.Inc, "=")
		if !ok {
			log.Fatal("--inc expects KEY=DELTA")
		}
		delta, err := strconv.ParseInt(deltaStr, 10, 64)
		if err != nil {
			log.Fatal(err)
		}
		tx, err := svc.TransactionInit(ctx, opts.Username)
		if err != nil {
			log.Fatal(err)
		}
		if err := tx.AtomicInc(key, delta); err != nil {
			log.Fatal(err)
		}
		status, err := tx.Commit()
		reportCommit(status, err)

	case opts.Iterate != "":
		flags := dict.IterFlags{Recurse: opts.Recurse, ExactKey: opts.ExactKey, NoValue: opts.NoValue}
		it := svc.IterateInit(ctx, opts.Username, opts.Iterate, flags, opts.Limit)
		defer it.Close()
		for {
			row, ok, err := it.Next()
			if err != nil {
				log.Fatal(err)
			}
			if !ok {
				break
			}
			fmt.Printf("%s\t%s\n", row.Key, strings.Join(row.Values, "\t"))
		}

	default:
		fmt.Println("No action given; use one of --get, --set, --unset, --inc, --iterate")
		os.Exit(1)
	}
}

func reportCommit(status dict.CommitStatus, err error) {
	switch {
	case err != nil:
		log.Fatal(err)
	case status == dict.CommitNotFound:
		fmt.Println("(not found)")
	default:
		fmt.Println("OK")
	}
}
