package web

import (
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"threatwatch/pkg/telemetry"
)

func (a *API) filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()

	tag := strings.TrimSpace(q.Get("tag"))
	if tag == "" {
		tag = strings.TrimSpace(q.Get("tags"))
	}

	return Filter{
		Type:     strings.ToLower(strings.TrimSpace(q.Get("type"))),
		Severity: strings.ToLower(strings.TrimSpace(q.Get("severity"))),
		Tag:      tag,
		Since:    parseQueryTime(q.Get("since")),
		Until:    parseQueryTime(q.Get("until")),
		Limit:    parseLimit(q.Get("limit"), a.config.PageSize, a.config.MaxPageSize),
	}
}

func (a *API) searchIndicators(r *http.Request, filter Filter) ([]Indicator, error) {
	ctx, span := telemetry.Tracer("threatwatch/web").Start(r.Context(), "query.indicators",
		trace.WithAttributes(
			attribute.String("query.type", orAny(filter.Type)),
			attribute.String("query.severity", orAny(filter.Severity)),
			attribute.String("query.tag", orAny(filter.Tag)),
			attribute.Int("query.limit", filter.Limit),
		))
	defer span.End()

	indicators, err := a.store.SearchIndicators(ctx, filter)
	if err != nil {
		span.RecordError(err)
		a.metrics.Queries.WithLabelValues("error").Inc()
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(indicators)))
	a.metrics.Queries.WithLabelValues("ok").Inc()
	return indicators, nil
}

func (a *API) handleListIndicators(w http.ResponseWriter, r *http.Request) {
	indicators, err := a.searchIndicators(r, a.filterFromQuery(r))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("store unavailable"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"indicators": indicators})
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	filter := a.filterFromQuery(r)

	indicators, err := a.searchIndicators(r, filter)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	rendered, err := a.renderer.Render("indicators.tmpl", map[string]any{
		"Filter":     filter,
		"Indicators": indicators,
	})
	if err != nil {
		http.Error(w, "render failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(rendered))
}

func orAny(v string) string {
	if v == "" {
		return "any"
	}
	return v
}
