// Command qhtml compiles qHTML sources to HTML and runs the development
// server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qhtml/qhtml-go/pkg/devserver"
	"github.com/qhtml/qhtml-go/pkg/qhtml"
	"github.com/qhtml/qhtml-go/pkg/qhtml/htmlout"
)

const version = "0.2.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qhtml",
		Short: "qHTML compiler and dev server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viper.SetEnvPrefix("QHTML")
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			viper.AutomaticEnv()
		},
	}

	root.PersistentFlags().Bool("verbose", false, "log compiler diagnostics to stderr")
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(compileCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root
}

func logger() zerolog.Logger {
	if !viper.GetBool("verbose") {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <file.qhtml>",
		Short: "Compile one qHTML file to HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			log := logger()
			d := qhtml.NewDiagnostics(log)
			dir := filepath.Dir(path)
			src := qhtml.AssembleImports(string(raw), func(ref string) (string, error) {
				data, err := os.ReadFile(filepath.Join(dir, filepath.Clean("/"+ref)))
				return string(data), err
			}, viper.GetInt("import-limit"), d)

			compiler := qhtml.New(
				qhtml.WithLogger(log),
				qhtml.WithWrapBareResults(true),
			)
			result := compiler.Compile(src)
			if result.Errors > 0 {
				fmt.Fprintf(os.Stderr, "compiled with %d error(s), %d warning(s)\n",
					result.Errors, result.Warnings)
			}

			title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			page := htmlout.Page(title, result.Roots)

			out := viper.GetString("out")
			if out == "" || out == "-" {
				fmt.Print(page)
				return nil
			}
			return os.WriteFile(out, []byte(page), 0o644)
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	cmd.Flags().Int("import-limit", qhtml.DefaultImportLimit, "max resolved imports per compile")
	viper.BindPFlag("out", cmd.Flags().Lookup("out"))
	viper.BindPFlag("import-limit", cmd.Flags().Lookup("import-limit"))
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a directory of qHTML files with live reload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
				With().Timestamp().Logger()

			srv, err := devserver.New(dir, viper.GetString("addr"), log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qhtml version %s\n", version)
		},
	}
}
