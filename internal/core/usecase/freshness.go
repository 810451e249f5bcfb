package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

const (
	freshnessInfoWindow = 30 * 24 * time.Hour
	dateLayout          = "2006-01-02"
)

type updateCadence int

const (
	cadenceAnnual updateCadence = iota
	cadenceMonthly
	cadenceQuarterly
)

type freshnessRule struct {
	cadence updateCadence
	// updateMonth is the calendar month of the annual update.
	updateMonth time.Month
	grace       time.Duration
	label       string
}

var freshnessRules = map[domain.DataType]freshnessRule{
	domain.DataTypeIncomeLimits:     {cadence: cadenceAnnual, updateMonth: time.April, grace: 90 * 24 * time.Hour, label: "Income limits"},
	domain.DataTypeSpousalStandards: {cadence: cadenceAnnual, updateMonth: time.January, grace: 90 * 24 * time.Hour, label: "Spousal standards"},
	domain.DataTypeProgramHandbook:  {cadence: cadenceMonthly, grace: 30 * 24 * time.Hour, label: "Program handbook"},
	domain.DataTypePolicyManual:     {cadence: cadenceQuarterly, grace: 45 * 24 * time.Hour, label: "Policy manual"},
}

// expectedUpdate is the first date after effective on which a newer edition
// is due.
func (r freshnessRule) expectedUpdate(effective time.Time) time.Time {
	effective = truncateDay(effective)
	switch r.cadence {
	case cadenceMonthly:
		return effective.AddDate(0, 1, 0)
	case cadenceQuarterly:
		return effective.AddDate(0, 3, 0)
	default:
		next := time.Date(effective.Year(), r.updateMonth, 1, 0, 0, 0, 0, time.UTC)
		if !next.After(effective) {
			next = next.AddDate(1, 0, 0)
		}
		return next
	}
}

func (r freshnessRule) level(now, expected time.Time) domain.StalenessLevel {
	until := expected.Sub(now)
	switch {
	case until > freshnessInfoWindow:
		return domain.StalenessNone
	case until >= 0:
		return domain.StalenessInfo
	case -until < r.grace:
		return domain.StalenessWarning
	default:
		return domain.StalenessCritical
	}
}

// FreshnessAnnotator warns when a cited document is likely superseded. The
// metadata snapshot is loaded once per process on first use.
type FreshnessAnnotator struct {
	source ports.DocumentMetadataSource
	now    func() time.Time

	// mu serializes loads; readers go through snapshot once it is set.
	mu       sync.Mutex
	snapshot atomic.Pointer[map[string]domain.DocumentMeta]
}

func NewFreshnessAnnotator(source ports.DocumentMetadataSource, now func() time.Time) *FreshnessAnnotator {
	if now == nil {
		now = time.Now
	}
	return &FreshnessAnnotator{source: source, now: now}
}

// documents returns the snapshot. The first callers load it under the lock
// and share one load; later callers read it without locking. Failed loads
// are not stored.
func (f *FreshnessAnnotator) documents(ctx context.Context) (map[string]domain.DocumentMeta, error) {
	if snapshot := f.snapshot.Load(); snapshot != nil {
		return *snapshot, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if snapshot := f.snapshot.Load(); snapshot != nil {
		return *snapshot, nil
	}

	snapshot := map[string]domain.DocumentMeta{}
	if f.source != nil {
		docs, err := f.source.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range docs {
			snapshot[doc.ID] = doc
		}
	}
	f.snapshot.Store(&snapshot)
	return snapshot, nil
}

// Assess builds freshness info for the documents behind the citations.
// Snapshot failures are logged and produce an empty result.
func (f *FreshnessAnnotator) Assess(ctx context.Context, citations []domain.Citation) domain.FreshnessInfo {
	now := f.now().UTC()
	info := domain.FreshnessInfo{
		LastRetrieved: now,
		Warnings:      []domain.FreshnessWarning{},
	}
	if len(citations) == 0 {
		return info
	}

	docs, err := f.documents(ctx)
	if err != nil {
		slog.Warn("freshness_snapshot_failed", "error", err)
		return info
	}

	var (
		latestRetrieved time.Time
		minEffective    time.Time
		maxEffective    time.Time
	)
	seen := make(map[string]struct{}, len(citations))
	for _, citation := range citations {
		if _, ok := seen[citation.DocumentID]; ok {
			continue
		}
		seen[citation.DocumentID] = struct{}{}

		meta, ok := docs[citation.DocumentID]
		if !ok {
			continue
		}
		if meta.RetrievedAt != nil && meta.RetrievedAt.After(latestRetrieved) {
			latestRetrieved = *meta.RetrievedAt
		}
		if meta.EffectiveDate == nil {
			continue
		}
		effective := meta.EffectiveDate.UTC()
		if minEffective.IsZero() || effective.Before(minEffective) {
			minEffective = effective
		}
		if effective.After(maxEffective) {
			maxEffective = effective
		}

		dataType := domain.ParseDataType(meta.DocumentType)
		rule, ok := freshnessRules[dataType]
		if !ok {
			continue
		}
		expected := rule.expectedUpdate(effective)
		level := rule.level(now, expected)
		if level == domain.StalenessNone {
			continue
		}

		filename := meta.Filename
		if filename == "" {
			filename = citation.Filename
		}
		info.Warnings = append(info.Warnings, domain.FreshnessWarning{
			DocumentID:     citation.DocumentID,
			Filename:       filename,
			DataType:       dataType,
			Level:          level,
			EffectiveDate:  effective,
			ExpectedUpdate: expected,
			Message:        freshnessMessage(rule, level, filename, effective, expected),
		})
		if level >= domain.StalenessWarning {
			info.HasStaleData = true
		}
	}

	if !latestRetrieved.IsZero() {
		info.LastRetrieved = latestRetrieved.UTC()
	}
	info.EffectivePeriod = effectivePeriod(minEffective, maxEffective)

	sort.SliceStable(info.Warnings, func(i, j int) bool {
		return info.Warnings[i].Level > info.Warnings[j].Level
	})
	return info
}

func freshnessMessage(rule freshnessRule, level domain.StalenessLevel, filename string, effective, expected time.Time) string {
	switch level {
	case domain.StalenessInfo:
		return fmt.Sprintf("%s in %s (effective %s) are due for an update on %s.",
			rule.label, filename, effective.Format(dateLayout), expected.Format(dateLayout))
	case domain.StalenessWarning:
		return fmt.Sprintf("%s in %s (effective %s) may be outdated; an update was expected on %s.",
			rule.label, filename, effective.Format(dateLayout), expected.Format(dateLayout))
	default:
		return fmt.Sprintf("%s in %s (effective %s) are likely outdated; an update was expected on %s. Verify current figures with your state agency.",
			rule.label, filename, effective.Format(dateLayout), expected.Format(dateLayout))
	}
}

func effectivePeriod(from, to time.Time) string {
	if from.IsZero() {
		return ""
	}
	if from.Equal(to) {
		return from.Format(dateLayout)
	}
	return from.Format(dateLayout) + " to " + to.Format(dateLayout)
}

// Annotate appends one bullet per warning.
func (f *FreshnessAnnotator) Annotate(answer string, info domain.FreshnessInfo) string {
	lines := make([]string, 0, len(info.Warnings))
	for _, w := range info.Warnings {
		if w.Level == domain.StalenessNone {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", w.Level, w.Message))
	}
	if len(lines) == 0 {
		return answer
	}
	return answer + "\n\n---\n**Data freshness:**\n" + strings.Join(lines, "\n")
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
