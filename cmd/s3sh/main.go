// Command s3sh is the interactive shell entrypoint: it parses CLI flags,
// builds the ObjectStore/archive registry/caches the VFS core depends on,
// and runs the REPL described in spec.md §6. History and full line editing
// (cursor movement, kill-ring) are explicitly out of scope (§1) and there
// is no pack library that provides them; what remains — a prompt and TAB
// completion — is driven by this package's own minimal raw-mode reader
// (readline.go), since that is the only way the completion cache (C9) is
// ever reachable outside its unit tests. Non-interactive (piped) input
// falls back to a plain line-at-a-time scanner.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nabbar/s3sh/archive"
	"github.com/nabbar/s3sh/archive/parquethandler"
	"github.com/nabbar/s3sh/archive/tarhandler"
	"github.com/nabbar/s3sh/archive/ziphandler"
	"github.com/nabbar/s3sh/cache"
	s3shcobra "github.com/nabbar/s3sh/cobra"
	"github.com/nabbar/s3sh/command"
	"github.com/nabbar/s3sh/completion"
	"github.com/nabbar/s3sh/config"
	liberr "github.com/nabbar/s3sh/errors"
	"github.com/nabbar/s3sh/resolver"
	"github.com/nabbar/s3sh/store"
	"github.com/nabbar/s3sh/store/s3store"
	"github.com/nabbar/s3sh/vfs"
)

// cacheCapacity is the archive index LRU's bound (§4.7 "defaults to 100
// entries").
const cacheCapacity = 100

func main() {
	os.Exit(run())
}

func run() int {
	var (
		providerName  string
		listProviders bool
		exitCode      int
	)

	root := &cobra.Command{
		Use:           "s3sh",
		Short:         "interactive shell over S3-compatible object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&providerName, "provider", "aws", "provider config to use")
	root.PersistentFlags().BoolVar(&listProviders, "list-providers", false, "print known providers and exit")
	s3shcobra.AddCommandCompletion(root, "s3sh")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		if listProviders {
			config.PrintList(func(format string, a ...interface{}) {
				fmt.Fprintf(os.Stdout, format, a...)
			})
			return nil
		}

		provider, ok := config.Get(providerName)
		if !ok {
			fmt.Fprintf(os.Stderr, "s3sh: unknown provider %q\n", providerName)
			exitCode = 1
			return nil
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			if _, ok := <-sigCh; ok {
				cancel()
			}
		}()

		s, err := s3store.New(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "s3sh: %s\n", err)
			exitCode = 2
			return nil
		}

		disp, comp := buildDispatcher(s)

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		exitCode = repl(ctx, disp, comp, interactive)
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// buildDispatcher wires the VFS/archive core (§9 "constructed at shell
// startup and torn down on exit ... passed explicitly to components; no
// ambient globals"): one archive.Registry binding every handler to its
// vfs.ArchiveKind, one shared C7 index cache, the resolver, the completion
// cache, and the command dispatcher. The completion cache is returned
// (not discarded) so the interactive REPL's raw-mode reader can drive it
// on TAB.
func buildDispatcher(s store.ObjectStore) (*command.Dispatcher, *completion.Cache) {
	reg := archive.NewRegistry()
	reg.Register(vfs.ArchiveZip, ziphandler.New())
	reg.Register(vfs.ArchiveTar, tarhandler.New(vfs.ArchiveTar))
	reg.Register(vfs.ArchiveTarGzip, tarhandler.New(vfs.ArchiveTarGzip))
	reg.Register(vfs.ArchiveTarBzip2, tarhandler.New(vfs.ArchiveTarBzip2))
	reg.Register(vfs.ArchiveParquet, parquethandler.New())

	idxCache := cache.New(cacheCapacity)
	r := resolver.New(s, reg, idxCache)
	comp := completion.New(s, reg, idxCache, r)

	return command.New(s, reg, idxCache, r, os.Stdout, os.Stderr), comp
}

// repl reads one command per line until EOF (§6): in interactive mode it
// drives the raw-mode lineReader (prompt + TAB completion) and keeps going
// after a command error (current node unchanged, §7); in non-interactive
// mode (piped stdin) it falls back to a plain bufio.Scanner, since raw
// terminal mode only applies to a real tty, and the first command error
// aborts with its mapped exit code.
func repl(ctx context.Context, disp *command.Dispatcher, comp *completion.Cache, interactive bool) int {
	if interactive {
		return replInteractive(ctx, disp, comp)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			return vfs.KindCanceled.ExitCode()
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := runLine(ctx, disp, line); err != nil {
			return exitCodeFor(err)
		}
	}

	return 0
}

func replInteractive(ctx context.Context, disp *command.Dispatcher, comp *completion.Cache) int {
	lr := newLineReader(comp, disp)

	for {
		if ctx.Err() != nil {
			return vfs.KindCanceled.ExitCode()
		}

		prompt := disp.Current().Path().AsDisplay() + " $ "
		line, err := lr.readLine(ctx, prompt)
		if err != nil {
			if errors.Is(err, errInterrupted) {
				continue
			}
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		_ = runLine(ctx, disp, line)
	}

	return 0
}

// runLine executes one line, splitting on a trailing "| <command>" to wire
// the dispatcher's stdout into an external process's stdin (§6; POSIX
// pipe/redirection plumbing, otherwise out of scope per §1).
func runLine(ctx context.Context, disp *command.Dispatcher, line string) error {
	if idx := strings.LastIndex(line, "|"); idx >= 0 {
		return runPiped(ctx, disp, line[:idx], strings.TrimSpace(line[idx+1:]))
	}
	return disp.Execute(ctx, line)
}

func runPiped(ctx context.Context, disp *command.Dispatcher, inner, external string) error {
	inner = strings.TrimSpace(inner)
	fields := strings.Fields(external)
	if len(fields) == 0 {
		return disp.Execute(ctx, inner)
	}

	extCmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	stdin, err := extCmd.StdinPipe()
	if err != nil {
		return err
	}
	extCmd.Stdout = os.Stdout
	extCmd.Stderr = os.Stderr

	if err := extCmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}

	cmdErr := disp.ExecuteWithOutput(ctx, inner, stdin)
	_ = stdin.Close()
	waitErr := extCmd.Wait()

	if cmdErr != nil {
		return cmdErr
	}
	return waitErr
}

// coder is satisfied by errors.Error (and therefore by any vfs.KindedError
// wrapping one), used to tell command/'s usage errors apart from the
// shared vfs.Kind-mapped runtime errors (§6 "1 command-line/usage error"
// vs "2 runtime error").
type coder interface {
	GetCode() liberr.CodeError
}

func exitCodeFor(err error) int {
	if c, ok := err.(coder); ok {
		switch c.GetCode() {
		case command.ErrorUsage, command.ErrorUnknownCommand:
			return 1
		}
	}
	return vfs.KindOf(err).ExitCode()
}
