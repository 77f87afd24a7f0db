package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/l10nmonster/lqa-boss-sub001/internal/archive"
	"github.com/l10nmonster/lqa-boss-sub001/internal/config"
	"github.com/l10nmonster/lqa-boss-sub001/internal/diff"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/meta"
	"github.com/l10nmonster/lqa-boss-sub001/internal/quality"
	"github.com/l10nmonster/lqa-boss-sub001/internal/reconcile"
	"github.com/l10nmonster/lqa-boss-sub001/internal/report"
	"github.com/l10nmonster/lqa-boss-sub001/internal/session"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage/capture"
	"github.com/l10nmonster/lqa-boss-sub001/internal/walkwalk"
)

type appFunc func() *app

func newLsCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [location]",
		Short: "List job packages on the backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			b, closeBackend, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend()
			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			files, err := b.ListFiles(cmd.Context(), location)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSIZE\tUPDATED\tNAME")
			for _, f := range files {
				updated := "-"
				if !f.UpdatedAt.IsZero() {
					updated = f.UpdatedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.ID, f.Size, updated, f.Name)
			}
			return tw.Flush()
		},
	}
}

func newStatusCmd(get appFunc) *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the review state of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var want reconcile.FileStatus
			if expect != "" {
				st, err := reconcile.ParseStatus(strings.ToUpper(expect))
				if err != nil {
					return err
				}
				want = st
			}
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			rec := s.Reconciler()
			st := rec.Summary()
			cur := rec.Current()

			tw := tabwriter.NewWriter(a.out, 0, 4, 1, ' ', 0)
			fmt.Fprintf(tw, "file:\t%s\n", args[0])
			fmt.Fprintf(tw, "languages:\t%s -> %s\n", cur.SourceLang, cur.TargetLang)
			fmt.Fprintf(tw, "status:\t%s\n", s.Status())
			fmt.Fprintf(tw, "units:\t%d\n", st.Total)
			fmt.Fprintf(tw, "changed:\t%d\n", st.Changed)
			fmt.Fprintf(tw, "pending:\t%d\n", st.PendingCandidates)
			fmt.Fprintf(tw, "annotated:\t%d\n", st.Annotated)
			if pkg := s.Package(); pkg.Quality != nil {
				res, err := quality.Score(pkg.Quality, cur)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "quality:\tscore=%.2f ept=%.2f errors=%d pass=%t\n", res.Score, res.EPT, res.Errors, res.Pass)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if want != "" && s.Status() != want {
				return fmt.Errorf("status is %s, expected %s", s.Status(), want)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the status is this one (NEW, LOADED, CHANGED or SAVED)")
	return cmd
}

func newDiffCmd(get appFunc) *cobra.Command {
	var contextLines int
	cmd := &cobra.Command{
		Use:   "diff <id>",
		Short: "Print unified diffs of every changed target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			if !cmd.Flags().Changed("context") {
				contextLines = a.cfg.Report.DiffContext
			}
			rec := s.Reconciler()
			orig := rec.Original().Index()
			for _, tu := range rec.ChangedTUs() {
				body, _ := diff.Target(orig[tu.GUID], tu, diff.Options{Context: contextLines})
				fmt.Fprint(a.out, body)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&contextLines, "context", 3, "context lines per hunk")
	return cmd
}

// saveAndReport saves s and prints the resulting status.
func saveAndReport(cmd *cobra.Command, a *app, s *session.Session) error {
	if err := s.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "status: %s\n", s.Status())
	return nil
}

func newEditCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <guid> <target>",
		Short: "Replace the target of one unit and save",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			changed, err := s.Edit(args[1], job.Parts{job.Text(args[2])})
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(a.out, "unchanged")
				return nil
			}
			return saveAndReport(cmd, a, s)
		},
	}
}

func newSelectCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id> <guid> <index>",
		Short: "Pick one of a unit's candidate translations and save",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			if !s.SelectCandidate(args[1], idx) {
				return fmt.Errorf("unit %s has no candidate %d", args[1], idx)
			}
			return saveAndReport(cmd, a, s)
		},
	}
}

func newAnnotateCmd(get appFunc) *cobra.Command {
	var ann job.Annotation
	cmd := &cobra.Command{
		Use:   "annotate <id> <guid>",
		Short: "Record a quality finding on one unit and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			tu, ok := s.Reconciler().Unit(args[1])
			if !ok {
				return fmt.Errorf("unknown unit %s", args[1])
			}
			if _, err := s.Annotate(args[1], append(tu.QA, ann)); err != nil {
				return err
			}
			return saveAndReport(cmd, a, s)
		},
	}
	cmd.Flags().StringVar(&ann.Category, "category", "", "error category id")
	cmd.Flags().StringVar(&ann.Severity, "severity", "", "severity id")
	cmd.Flags().StringVar(&ann.Comment, "comment", "", "free-text comment")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("severity")
	return cmd
}

func newReportCmd(get appFunc) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Export an XLSX review report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			s, done, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()
			rec := s.Reconciler()
			_, name := s.File()
			r, err := report.Build(report.Input{
				Name:        name,
				Original:    rec.Original(),
				Saved:       rec.Saved(),
				Current:     rec.Current(),
				Status:      s.Status(),
				Model:       s.Package().Quality,
				DiffContext: a.cfg.Report.DiffContext,
			})
			if err != nil {
				return err
			}
			b, err := report.WriteXLSX(r, a.logger)
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(name, filepath.Ext(name)) + ".xlsx"
			}
			if err := os.WriteFile(output, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%d rows)\n", output, len(r.Rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <package>.xlsx)")
	return cmd
}

func newPackCmd(get appFunc) *cobra.Command {
	var (
		output string
		push   bool
	)
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Assemble a job package from job.json, optional metadata.json and quality.json, and page images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			contents, err := readPackDir(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := archive.Write(&buf, contents); err != nil {
				return err
			}
			if _, err := archive.Load(buf.Bytes(), archive.WithLogger(a.logger)); err != nil {
				return fmt.Errorf("packed result does not load: %w", err)
			}
			if output == "" {
				output = filepath.Base(filepath.Clean(args[0])) + archive.Extension
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%d units, %d images)\n", output, len(contents.Job.TUs), len(contents.Images))
			if !push {
				return nil
			}
			if a.cfg.Capture.RedisURL == "" {
				return fmt.Errorf("--push needs REDIS_URL")
			}
			store, err := capture.Connect(cmd.Context(), a.cfg.Capture.RedisURL, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Push(cmd.Context(), contents.Job.JobGUID, filepath.Base(output), buf.Bytes(), time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "pushed %s\n", contents.Job.JobGUID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <dir>.lqaboss)")
	cmd.Flags().BoolVar(&push, "push", false, "also push the package into the capture inbox")
	return cmd
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// readPackDir loads the members of a package from dir. Images are every
// file with an image extension, keyed by their slash path relative to dir.
// A job without a guid gets a fresh one.
func readPackDir(dir string) (archive.Contents, error) {
	var c archive.Contents
	raw, err := os.ReadFile(filepath.Join(dir, archive.JobMember))
	if err != nil {
		return c, err
	}
	if c.Job, err = job.Parse(raw); err != nil {
		return c, fmt.Errorf("%s: %w", archive.JobMember, err)
	}
	if c.Job.JobGUID == "" {
		c.Job.JobGUID = uuid.NewString()
	}
	if raw, err := os.ReadFile(filepath.Join(dir, archive.MetadataMember)); err == nil {
		var pages archive.PageMetadata
		if err := json.Unmarshal(raw, &pages); err != nil {
			return c, fmt.Errorf("%s: %w", archive.MetadataMember, err)
		}
		c.Pages = &pages
	} else if !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	if raw, err := os.ReadFile(filepath.Join(dir, archive.QualityMember)); err == nil {
		if c.Quality, err = quality.Parse(raw); err != nil {
			return c, fmt.Errorf("%s: %w", archive.QualityMember, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return c, err
	}
	files, err := walkwalk.Collect(dir, walkwalk.Options{Exts: imageExts})
	if err != nil {
		return c, err
	}
	c.Images = make(map[string][]byte, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return c, err
		}
		c.Images[f.RelPath] = b
	}
	return c, nil
}

func newWatchCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print capture inbox announcements until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if a.cfg.Backend != config.BackendCapture {
				return fmt.Errorf("watch needs --backend %s", config.BackendCapture)
			}
			b, closeBackend, err := a.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer closeBackend()
			ids, err := b.(*capture.Store).Watch(cmd.Context())
			if err != nil {
				return err
			}
			for id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), meta.Detect().String())
			return nil
		},
	}
}
