package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/metrics"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// IngestionPipeline turns chat messages into stored IOCs:
// tokenize, classify every token, insert each match.
type IngestionPipeline struct {
	repo   ports.IOCRepository
	tlds   domain.TLDChecker
	logger *zap.SugaredLogger

	onInsert []func(Report)
}

// NewIngestionPipeline wires a pipeline. tlds may be nil, in which case no
// token is ever classified as a domain.
func NewIngestionPipeline(repo ports.IOCRepository, tlds domain.TLDChecker, logger *zap.SugaredLogger) *IngestionPipeline {
	return &IngestionPipeline{
		repo:   repo,
		tlds:   tlds,
		logger: logger,
	}
}

// OnInsert registers fn to run after every message that stored at least one
// new IOC, whichever transport delivered it. Register hooks before the
// pipeline starts processing; registration is not synchronized.
func (p *IngestionPipeline) OnInsert(fn func(Report)) {
	p.onInsert = append(p.onInsert, fn)
}

// Detection is one classified token and what the store did with it.
type Detection struct {
	Value    string         `json:"value"`
	Type     domain.IOCType `json:"type"`
	Inserted bool           `json:"inserted"`
	Err      error          `json:"-"`
}

// Report summarizes one message. Storage failures are counted here instead
// of being returned, so one bad message never stops the caller.
type Report struct {
	ScanID     string      `json:"scan_id"`
	Tokens     int         `json:"tokens"`
	Detections []Detection `json:"detections"`
	Inserted   int         `json:"inserted"`
	Duplicates int         `json:"duplicates"`
	Failures   int         `json:"failures"`
}

// Failed reports whether any insert of this message hit a storage error.
func (r Report) Failed() bool {
	return r.Failures > 0
}

// ProcessMessage classifies the tokens of text left to right and inserts
// each IOC with src as provenance. If src carries no message text, the
// full text is recorded. Safe for concurrent use.
func (p *IngestionPipeline) ProcessMessage(ctx context.Context, text string, src domain.Source) Report {
	timer := metrics.StartTimer()

	if src.MessageText == nil {
		src.MessageText = &text
	}

	tokens := domain.Tokenize(text)
	report := Report{
		ScanID:     uuid.NewString(),
		Tokens:     len(tokens),
		Detections: []Detection{},
	}
	log := p.logger.With("scan_id", report.ScanID, "chat", src.ChatLabel())

	for _, token := range tokens {
		c := domain.Classify(token, p.tlds)
		metrics.RecordVerdict(c.Verdict.String())

		iocType, ok := c.IOCType()
		if !ok {
			if looksLikeUnknownDomain(c) {
				log.Debugw("not a valid TLD", "token", token)
			}
			continue
		}

		detection := Detection{Value: c.Token, Type: iocType}
		res, err := p.repo.Insert(ctx, domain.Candidate{Value: c.Token, Type: iocType, Source: src})

		switch {
		case err != nil:
			detection.Err = err
			report.Failures++
			metrics.RecordInsert(string(iocType), "error")
			metrics.RecordStorageError("insert")
			log.Errorw("failed to save IOC", "value", c.Token, "type", iocType, "error", err)
		case res.Inserted:
			detection.Inserted = true
			report.Inserted++
			metrics.RecordInsert(string(iocType), "inserted")
			log.Infow("saved IOC", "value", c.Token, "type", iocType, "id", res.Record.ID)
		default:
			report.Duplicates++
			metrics.RecordInsert(string(iocType), "duplicate")
			log.Debugw("IOC already recorded", "value", c.Token, "type", iocType)
		}

		report.Detections = append(report.Detections, detection)
	}

	if len(report.Detections) > 0 {
		log.Infow("found IOCs in message",
			"found", len(report.Detections),
			"inserted", report.Inserted,
			"duplicates", report.Duplicates,
			"failures", report.Failures,
		)
	}

	outcome := "ok"
	if report.Failed() {
		outcome = "partial_failure"
	}
	metrics.RecordMessage(outcome, timer.Elapsed())

	if report.Inserted > 0 {
		for _, fn := range p.onInsert {
			fn(report)
		}
	}

	return report
}

// looksLikeUnknownDomain is only used for debug logging: the token has a
// hostname shape but its TLD is not registered.
func looksLikeUnknownDomain(c domain.Classification) bool {
	return c.Verdict == domain.Unmatched && domain.HasHostnameShape(c.Token)
}
