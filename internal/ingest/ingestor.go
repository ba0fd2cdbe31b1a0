// Package ingest drives paginated retrieval of procurement notices from the
// remote catalog, with prefix filtering, in-run deduplication, and a
// resumable cursor.
package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/config"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/fetcher"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

const sourceLabel = "UK Contracts Finder"

// descriptionLimit bounds stored description length.
const descriptionLimit = 500

// Result is the outcome of one ingestion run. Records holds whatever was
// accumulated before the run finished, stopped, or aborted: partial output
// is always committed in favor of forward progress.
type Result struct {
	Records    []model.ContractRecord
	Pages      int
	Status     model.RunStatus
	LastCursor string
	Err        error
}

// Ingestor owns the per-run accumulator state: the dedup set and record list
// live for exactly one run and are discarded afterwards. Only the cursor
// token survives across runs.
type Ingestor struct {
	fetcher *fetcher.Client
	cursor  *CursorStore
	cfg     config.CatalogConfig

	seen    map[string]struct{}
	records []model.ContractRecord
	pacer   *rate.Limiter
}

// New creates an Ingestor for one run.
func New(f *fetcher.Client, cursor *CursorStore, cfg config.CatalogConfig) *Ingestor {
	delay := cfg.PageDelay()
	var pacer *rate.Limiter
	if delay > 0 {
		pacer = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Ingestor{
		fetcher: f,
		cursor:  cursor,
		cfg:     cfg,
		seen:    make(map[string]struct{}),
		pacer:   pacer,
	}
}

// Run executes the pagination loop until the catalog reports no further
// page, the catalog answers with an error status, or an unexpected failure
// interrupts the loop. It never returns an error alongside zero state: the
// Result always carries the accumulated records and terminal status.
func (in *Ingestor) Run(ctx context.Context) Result {
	log := zap.L().With(zap.String("component", "ingestor"))

	nextURL, err := in.cursor.Load()
	if err != nil {
		return Result{Status: model.RunStatusAborted, Err: err}
	}
	firstPage := nextURL == ""
	if !firstPage {
		log.Info("resuming from persisted cursor", zap.String("cursor", nextURL))
	}

	pages := 0
	for {
		if in.pacer != nil {
			if err := in.pacer.Wait(ctx); err != nil {
				return in.finish(model.RunStatusAborted, pages, nextURL, err)
			}
		}

		pages++
		log.Info("fetching page",
			zap.Int("page", pages),
			zap.Int("accumulated", len(in.records)),
		)

		var resp *http.Response
		if firstPage {
			resp, err = in.fetcher.Get(ctx, in.cfg.BaseURL, in.firstPageParams())
			firstPage = false
		} else {
			resp, err = in.fetcher.Get(ctx, nextURL, nil)
		}
		if err != nil {
			// Retry exhaustion inside the fetcher is fatal for the run.
			return in.finish(model.RunStatusAborted, pages, nextURL, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			log.Error("catalog returned error status, stopping run",
				zap.Int("status", resp.StatusCode),
			)
			return in.finish(model.RunStatusStopped, pages, nextURL, nil)
		}

		page, err := decodePage(resp.Body)
		resp.Body.Close()
		if err != nil {
			return in.finish(model.RunStatusAborted, pages, nextURL, err)
		}

		if len(page.Releases) == 0 {
			log.Info("no more releases, end reached")
			return in.finish(model.RunStatusDone, pages, nextURL, nil)
		}

		for _, rel := range page.Releases {
			if rec, ok := in.filterRelease(rel); ok {
				in.records = append(in.records, rec)
				in.seen[rec.OCID] = struct{}{}
			}
		}

		if page.Links.Next == "" {
			log.Info("pagination complete")
			return in.finish(model.RunStatusDone, pages, nextURL, nil)
		}

		nextURL = page.Links.Next
		if err := in.cursor.Save(nextURL); err != nil {
			return in.finish(model.RunStatusAborted, pages, nextURL, err)
		}
	}
}

func (in *Ingestor) finish(status model.RunStatus, pages int, cursor string, err error) Result {
	return Result{
		Records:    in.records,
		Pages:      pages,
		Status:     status,
		LastCursor: cursor,
		Err:        err,
	}
}

func (in *Ingestor) firstPageParams() url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(in.cfg.PageSize))
	params.Set("publishedFrom", in.cfg.PublishedFrom)
	params.Set("publishedTo", in.cfg.PublishedTo)
	return params
}

// filterRelease normalizes one release into a ContractRecord, rejecting
// records with an unknown or non-matching classification code and dropping
// identifiers already seen in this run.
func (in *Ingestor) filterRelease(rel release) (model.ContractRecord, bool) {
	if rel.OCID == "" {
		return model.ContractRecord{}, false
	}
	if _, dup := in.seen[rel.OCID]; dup {
		return model.ContractRecord{}, false
	}

	cpv := extractCPV(rel)
	if cpv == model.UnknownCPV || !HasPrefix(cpv, in.cfg.Prefixes) {
		return model.ContractRecord{}, false
	}

	amount, currency := extractValue(rel)

	title := "Unknown"
	description := ""
	status := ""
	if rel.Tender != nil {
		if rel.Tender.Title != "" {
			title = rel.Tender.Title
		}
		description = rel.Tender.Description
		status = rel.Tender.Status
	}
	if runes := []rune(description); len(runes) > descriptionLimit {
		description = string(runes[:descriptionLimit])
	}

	buyerName := "Unknown"
	if rel.Buyer != nil && rel.Buyer.Name != "" {
		buyerName = rel.Buyer.Name
	}

	return model.ContractRecord{
		OCID:          rel.OCID,
		Title:         title,
		Description:   description,
		CPVCode:       cpv,
		ValueAmount:   strconv.FormatFloat(amount, 'f', -1, 64),
		Currency:      currency,
		PublishedDate: rel.Date,
		BuyerName:     buyerName,
		BuyerCountry:  extractBuyerCountry(rel),
		TenderStatus:  status,
		Source:        sourceLabel,
	}, true
}

// HasPrefix reports whether code starts with any of the given prefixes.
func HasPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func decodePage(r io.Reader) (noticePage, error) {
	var page noticePage
	if err := json.NewDecoder(r).Decode(&page); err != nil {
		return page, eris.Wrap(err, "ingest: decode page")
	}
	return page, nil
}
