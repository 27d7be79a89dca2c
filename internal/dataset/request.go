package dataset

import (
	"strings"

	"github.com/alejandrodnm/propedge/internal/adapters/cache"
)

// Request describe un request lógico al proveedor, con su clave estable.
type Request struct {
	Method string
	Path   string
	Params map[string]string
	Label  string
	// IsPaid distingue endpoints que consumen créditos (odds) de los
	// gratuitos (events list).
	IsPaid bool
}

// Key devuelve la clave content-addressed del request.
func (r Request) Key() string {
	return cache.ComputeKey(r.Method, r.Path, r.Params)
}

// EventsRequest construye el request de la lista de eventos de un día.
func EventsRequest(spec Spec, commenceFrom, commenceTo string) Request {
	canonical := spec.Canonical()
	return Request{
		Method: "GET",
		Path:   "/sports/" + canonical.SportKey + "/events",
		Params: map[string]string{
			"dateFormat":       canonical.DateFormat,
			"commenceTimeFrom": commenceFrom,
			"commenceTimeTo":   commenceTo,
		},
		Label: "events_list",
	}
}

// EventOddsRequest construye el request de odds de un evento.
func EventOddsRequest(spec Spec, eventID string) Request {
	canonical := spec.Canonical()
	params := map[string]string{
		"markets":    strings.Join(canonical.Markets, ","),
		"oddsFormat": canonical.OddsFormat,
		"dateFormat": canonical.DateFormat,
	}
	if canonical.Bookmakers != "" {
		params["bookmakers"] = canonical.Bookmakers
	} else if canonical.Regions != "" {
		params["regions"] = canonical.Regions
	}
	if canonical.IncludeLinks {
		params["includeLinks"] = "true"
	}
	if canonical.IncludeSids {
		params["includeSids"] = "true"
	}
	return Request{
		Method: "GET",
		Path:   "/sports/" + canonical.SportKey + "/events/" + eventID + "/odds",
		Params: params,
		Label:  "event_odds:" + eventID,
		IsPaid: true,
	}
}

// FeaturedRequest construye el request de mercados destacados (game-level)
// de la ventana de un día.
func FeaturedRequest(spec Spec, commenceFrom, commenceTo string) Request {
	canonical := spec.Canonical()
	params := map[string]string{
		"markets":          strings.Join(canonical.FeaturedMarkets, ","),
		"oddsFormat":       canonical.OddsFormat,
		"dateFormat":       canonical.DateFormat,
		"commenceTimeFrom": commenceFrom,
		"commenceTimeTo":   commenceTo,
	}
	if canonical.Bookmakers != "" {
		params["bookmakers"] = canonical.Bookmakers
	} else if canonical.Regions != "" {
		params["regions"] = canonical.Regions
	}
	return Request{
		Method: "GET",
		Path:   "/sports/" + canonical.SportKey + "/odds",
		Params: params,
		Label:  "featured_odds",
		IsPaid: true,
	}
}
