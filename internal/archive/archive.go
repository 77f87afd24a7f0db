// Package archive unpacks and packs job packages: a zip container holding the
// job document, optional page metadata with screenshots, and an optional
// quality model.
//
// Loading is strict about the job document and lenient about everything
// else: a missing or malformed job.json aborts the load, while a broken
// optional member is logged, reported in Package.Warnings and treated as
// absent.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/candidate"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/quality"
	"github.com/l10nmonster/lqa-boss-sub001/internal/validate"
	"github.com/l10nmonster/lqa-boss-sub001/internal/ziputil"
)

// Member names inside a package.
const (
	JobMember      = "job.json"
	MetadataMember = "metadata.json"
	QualityMember  = "quality.json"
)

// Extension is the conventional file extension of a job package.
const Extension = ".lqaboss"

const defaultMaxMemberBytes = 64 << 20

// Package is the result of a successful Load.
type Package struct {
	// Job has duplicate guids collapsed and empty targets filled from source.
	Job *job.Job
	// Archived has duplicate guids collapsed but targets exactly as shipped.
	Archived *job.Job
	// Pages is nil when the package has no usable page metadata.
	Pages *PageMetadata
	// Quality is nil when the package has no usable quality model.
	Quality *quality.Model
	// Resources holds extracted page images; call Release when done.
	Resources *Resources
	// Warnings lists optional members that were present but unusable.
	Warnings []error
}

// Release frees the page images held by p.
func (p *Package) Release() {
	if p != nil {
		p.Resources.Release()
	}
}

// ImageHandle returns the resource handle of a page's screenshot.
func (p *Package) ImageHandle(pageID string) (string, bool) {
	if p == nil || p.Pages == nil {
		return "", false
	}
	for _, pg := range p.Pages.Pages {
		if pg.PageID == pageID && pg.ImageFile != "" {
			return p.Resources.Handle(ziputil.SanitizePath(pg.ImageFile))
		}
	}
	return "", false
}

type loadConfig struct {
	logger         *slog.Logger
	maxMemberBytes int64
}

// Option customizes Load.
type Option func(*loadConfig)

// WithLogger sets the logger used for recovered member failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *loadConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxMemberBytes caps the uncompressed size of any single member.
func WithMaxMemberBytes(n int64) Option {
	return func(c *loadConfig) {
		if n > 0 {
			c.maxMemberBytes = n
		}
	}
}

// Load parses a job package. Errors are INVALID_ARCHIVE AppErrors; nothing
// is returned alongside them.
func Load(data []byte, opts ...Option) (*Package, error) {
	cfg := loadConfig{logger: slog.Default(), maxMemberBytes: defaultMaxMemberBytes}
	for _, opt := range opts {
		opt(&cfg)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidArchive, "not a zip container", err)
	}
	members := ziputil.Members(zr)

	archived, err := loadJob(members, cfg)
	if err != nil {
		return nil, err
	}
	pkg := &Package{
		Archived:  archived,
		Job:       archived.Clone(),
		Resources: newResources(),
	}
	backfill(pkg.Job)

	pkg.loadPages(members, cfg)
	pkg.loadQuality(members, cfg)

	cfg.logger.Debug("archive.loaded",
		"units", len(pkg.Job.TUs),
		"pending", candidate.Pending(pkg.Job),
		"pages", pageCount(pkg.Pages),
		"images", len(pkg.Resources.Names()),
		"quality", pkg.Quality != nil,
	)
	return pkg, nil
}

func loadJob(members map[string]*zip.File, cfg loadConfig) (*job.Job, error) {
	f, ok := members[JobMember]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidArchive, "missing "+JobMember, nil)
	}
	raw, err := ziputil.ReadMember(f, cfg.maxMemberBytes)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidArchive, "unreadable "+JobMember, err)
	}
	if err := validateJobDocument(raw); err != nil {
		return nil, apperr.New(apperr.CodeInvalidArchive, "malformed "+JobMember, err)
	}
	parsed, err := job.Parse(raw)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidArchive, "malformed "+JobMember, err)
	}
	parsed.TUs = candidate.Collapse(parsed.TUs)
	if err := validate.Job(parsed); err != nil {
		return nil, apperr.New(apperr.CodeInvalidArchive, "inconsistent "+JobMember, err)
	}
	return parsed, nil
}

// backfill copies source into every empty target that is not waiting for a
// candidate choice.
func backfill(j *job.Job) {
	for _, tu := range j.TUs {
		if !tu.HasCandidates() && tu.NTgt.IsEmpty() {
			tu.NTgt = tu.NSrc.Clone()
		}
	}
}

func (p *Package) loadPages(members map[string]*zip.File, cfg loadConfig) {
	f, ok := members[MetadataMember]
	if !ok {
		return
	}
	raw, err := ziputil.ReadMember(f, cfg.maxMemberBytes)
	if err == nil {
		p.Pages, err = parsePages(raw)
	}
	if err != nil {
		p.corrupt(cfg, MetadataMember, err)
		return
	}
	for _, pg := range p.Pages.Pages {
		if pg.ImageFile == "" {
			continue
		}
		name := ziputil.SanitizePath(pg.ImageFile)
		if _, done := p.Resources.Handle(name); done {
			continue
		}
		img, ok := members[name]
		if !ok {
			cfg.logger.Warn("archive.image.missing", "page", pg.PageID, "image", name)
			continue
		}
		b, err := ziputil.ReadMember(img, cfg.maxMemberBytes)
		if err != nil {
			cfg.logger.Warn("archive.image.unreadable", "page", pg.PageID, "image", name, "error", err)
			continue
		}
		p.Resources.add(name, b)
	}
}

func (p *Package) loadQuality(members map[string]*zip.File, cfg loadConfig) {
	f, ok := members[QualityMember]
	if !ok {
		return
	}
	raw, err := ziputil.ReadMember(f, cfg.maxMemberBytes)
	if err == nil {
		p.Quality, err = quality.Parse(raw)
	}
	if err != nil {
		p.Quality = nil
		p.corrupt(cfg, QualityMember, err)
	}
}

func (p *Package) corrupt(cfg loadConfig, member string, cause error) {
	cfg.logger.Warn("archive.optional.corrupt", "member", member, "error", cause)
	p.Warnings = append(p.Warnings,
		apperr.New(apperr.CodeOptionalMemberCorrupt, fmt.Sprintf("%s ignored", member), cause))
}

func pageCount(m *PageMetadata) int {
	if m == nil {
		return 0
	}
	return len(m.Pages)
}
