package archive

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/quality"
	"github.com/l10nmonster/lqa-boss-sub001/internal/sortutil"
	"github.com/l10nmonster/lqa-boss-sub001/internal/ziputil"
)

// Contents is everything Write puts into a package.
type Contents struct {
	Job     *job.Job
	Pages   *PageMetadata
	Quality *quality.Model
	// Images maps member name to bytes; names are sanitized on write.
	Images map[string][]byte
}

// Write packs c as a zip. Members are written in a fixed order with fixed
// timestamps, so equal contents produce equal bytes.
func Write(w io.Writer, c Contents) error {
	if c.Job == nil {
		return fmt.Errorf("write package: job is required")
	}
	zw := zip.NewWriter(w)
	used := map[string]struct{}{JobMember: {}}
	if err := ziputil.WriteJSON(zw, JobMember, c.Job); err != nil {
		_ = zw.Close()
		return err
	}
	if c.Pages != nil {
		used[MetadataMember] = struct{}{}
		if err := ziputil.WriteJSON(zw, MetadataMember, c.Pages); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if c.Quality != nil {
		used[QualityMember] = struct{}{}
		if err := ziputil.WriteJSON(zw, QualityMember, c.Quality); err != nil {
			_ = zw.Close()
			return err
		}
	}
	for _, name := range sortutil.Keys(c.Images) {
		member := ziputil.EnsureUniqueName(ziputil.SanitizePath(name), used)
		if err := ziputil.WriteFile(zw, member, c.Images[name]); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}
