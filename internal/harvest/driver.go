// Package harvest drives the incremental crawl: paginate the subject
// collection, resolve each new subject's authors, extract save records, and
// flush both output files after every appended record. Two file-backed ID
// caches make the pass resumable across restarts.
package harvest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/amberdev/bangumi-harvest/internal/bangumiapi"
	"github.com/amberdev/bangumi-harvest/internal/extract"
	"github.com/amberdev/bangumi-harvest/internal/idcache"
)

// API is the slice of the collection client the driver needs.
type API interface {
	GetSubjectPage(ctx context.Context, limit, offset int) (*bangumiapi.SubjectPage, error)
	GetSubjectPersons(ctx context.Context, subjectID int) ([]bangumiapi.Person, error)
	GetPersonDetail(ctx context.Context, personID int) (*bangumiapi.PersonDetail, error)
}

// Config carries the tunables of one harvest pass.
type Config struct {
	BatchSize   int
	StartOffset int

	// Unconditional pacing, not backoff.
	SubjectDelay time.Duration
	PageDelay    time.Duration

	AuthorFile string
	MangaFile  string
}

// Outcome classifies how one subject was handled. Every Outcome is
// recoverable; the run only halts when processSubject returns an error.
type Outcome int

const (
	// OutcomeSaved: manga record written, subject marked cached.
	OutcomeSaved Outcome = iota
	// OutcomeCached: subject already processed by an earlier run.
	OutcomeCached
	// OutcomeNotNSFW: content filter; subject left uncached so a later run
	// can pick it up if it flips.
	OutcomeNotNSFW
	// OutcomePersonsUnavailable: person list fetch failed or came back
	// empty; subject left uncached for retry.
	OutcomePersonsUnavailable
	// OutcomeNoAuthors: persons fetched but none passed the author filter;
	// subject left uncached for retry.
	OutcomeNoAuthors
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeCached:
		return "cached"
	case OutcomeNotNSFW:
		return "not nsfw"
	case OutcomePersonsUnavailable:
		return "persons unavailable"
	case OutcomeNoAuthors:
		return "no authors"
	default:
		return "unknown"
	}
}

// Harvester owns the two accumulators and triggers all persistence.
type Harvester struct {
	api      API
	subjects *idcache.Cache
	authors  *idcache.Cache
	cfg      Config

	authorList []extract.PersonRecord
	mangaList  []extract.MangaRecord

	sleep func(time.Duration)
}

// New wires a harvester from its collaborators. The caches must be distinct
// instances; the harvester loads them itself in Run.
func New(api API, subjects, authors *idcache.Cache, cfg Config) *Harvester {
	return &Harvester{
		api:      api,
		subjects: subjects,
		authors:  authors,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// Run executes one full pass over the collection and returns the author
// accumulator. The returned error is non-nil only for the fatal per-subject
// path; everything else is logged and survived, and whatever accumulated is
// returned either way.
func (h *Harvester) Run(ctx context.Context) ([]extract.PersonRecord, error) {
	runID := uuid.NewString()
	log.Printf("harvest %s: starting", runID)

	h.loadState()

	total, err := h.probeTotal(ctx)
	if err != nil {
		log.Printf("harvest %s: probe total: %v", runID, err)
		return h.authorList, nil
	}
	log.Printf("harvest %s: %d subjects in collection, starting at offset %d", runID, total, h.cfg.StartOffset)

	for offset := h.cfg.StartOffset; offset < total; offset += h.cfg.BatchSize {
		fmt.Printf("offset %d\n", offset)
		page, err := h.api.GetSubjectPage(ctx, h.cfg.BatchSize, offset)
		if err != nil {
			log.Printf("failed to fetch subjects at offset %d: %v", offset, err)
			continue
		}

		for i := range page.Data {
			subject := &page.Data[i]
			outcome, err := h.processSubject(ctx, subject)
			if err != nil {
				log.Printf("error processing subject %d: %v", subject.ID, err)
				return h.authorList, fmt.Errorf("subject %d: %w", subject.ID, err)
			}
			fmt.Printf("subject %d %s %s: %s\n", subject.ID, subject.Name, subject.NameCN, outcome)
			if outcome == OutcomeSaved {
				h.sleep(h.cfg.SubjectDelay)
			}
		}

		h.sleep(h.cfg.PageDelay)
	}

	log.Printf("harvest %s: done, %d authors accumulated", runID, len(h.authorList))
	return h.authorList, nil
}

// loadState loads both ID caches and seeds the accumulators from prior
// output files. Prior results are never discarded, only appended to.
func (h *Harvester) loadState() {
	fmt.Printf("cached subjects: %d, cached authors: %d\n", h.subjects.Load(), h.authors.Load())

	if prior, err := readArray[extract.PersonRecord](h.cfg.AuthorFile); err != nil {
		log.Printf("failed to load existing authors: %v", err)
	} else if len(prior) > 0 {
		fmt.Printf("existing author size: %d\n", len(prior))
		h.authorList = append(h.authorList, prior...)
	}

	if prior, err := readArray[extract.MangaRecord](h.cfg.MangaFile); err != nil {
		log.Printf("failed to load existing manga: %v", err)
	} else if len(prior) > 0 {
		fmt.Printf("existing manga size: %d\n", len(prior))
		h.mangaList = append(h.mangaList, prior...)
	}
}

// probeTotal re-reads the server's current collection size with a one-item
// page before pagination begins.
func (h *Harvester) probeTotal(ctx context.Context) (int, error) {
	page, err := h.api.GetSubjectPage(ctx, 1, 0)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// processSubject handles one subject. All fetch failures for the subject's
// dependents are soft: logged, the subject stays uncached, and the loop
// continues. A non-nil error is the one loop-halting path, reserved for
// states that indicate a broken run rather than a bad item.
func (h *Harvester) processSubject(ctx context.Context, subject *bangumiapi.Subject) (Outcome, error) {
	if h.subjects.Contains(subject.ID) {
		return OutcomeCached, nil
	}
	// Content filter, not a dedup decision: the subject stays uncached so
	// it is revisited on later runs.
	if !subject.NSFW {
		return OutcomeNotNSFW, nil
	}

	persons, err := h.api.GetSubjectPersons(ctx, subject.ID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Printf("failed to fetch persons for subject %d %s: %v", subject.ID, subject.Name, err)
		return OutcomePersonsUnavailable, nil
	}
	if len(persons) == 0 {
		return OutcomePersonsUnavailable, nil
	}

	authors := extract.FilterAuthors(persons)
	if len(authors) == 0 {
		return OutcomeNoAuthors, nil
	}

	for _, author := range authors {
		if h.authors.Contains(author.ID) {
			continue
		}

		detail, err := h.api.GetPersonDetail(ctx, author.ID)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Printf("failed to fetch detail for author %d %s: %v", author.ID, author.Name, err)
			continue
		}
		if detail == nil {
			return 0, fmt.Errorf("author %d: nil detail without error", author.ID)
		}
		if detail.ID != author.ID {
			return 0, fmt.Errorf("author %d: detail carries id %d", author.ID, detail.ID)
		}

		rec := extract.NewPersonRecord(detail)
		fmt.Printf("got author %s (%d aliases)\n", rec.OriginalName, len(rec.Aliases))
		h.authorList = append(h.authorList, rec)
		h.authors.Add(author.ID)
		if err := writeArray(h.cfg.AuthorFile, h.authorList); err != nil {
			log.Printf("failed to save authors: %v", err)
		}
	}

	h.mangaList = append(h.mangaList, extract.NewMangaRecord(subject, authors))
	if err := writeArray(h.cfg.MangaFile, h.mangaList); err != nil {
		log.Printf("failed to save manga: %v", err)
	}
	h.subjects.Add(subject.ID)

	return OutcomeSaved, nil
}
