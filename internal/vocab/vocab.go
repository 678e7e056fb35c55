// Package vocab declares the URI vocabularies shared with the other services
// operating on the submission graphs. The values are part of the wire
// contract and must match the other participants byte for byte.
package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// StatusPredicate is the full form of adms:status; the delta dispatcher
// matches incoming triples against it. The other predicates this service
// speaks only ever appear prefixed inside query templates.
const StatusPredicate = "http://www.w3.org/ns/adms#status"

// Job and task statuses.
const (
	TaskScheduled = "http://redpencil.data.gift/id/concept/JobStatus/scheduled"
	TaskBusy      = "http://redpencil.data.gift/id/concept/JobStatus/busy"
	TaskSuccess   = "http://redpencil.data.gift/id/concept/JobStatus/success"
	TaskFailed    = "http://redpencil.data.gift/id/concept/JobStatus/failed"
)

// Download statuses, owned by the download agent. Note the historical
// misspelling in the scheduled status URI: it is in production data and
// cannot be corrected unilaterally.
const (
	DownloadReady     = "http://lblod.data.gift/file-download-statuses/ready-to-be-cached"
	DownloadScheduled = "http://lblod.data.gift/file-download-statuses/sheduled"
	DownloadOngoing   = "http://lblod.data.gift/file-download-statuses/ongoing"
	DownloadSuccess   = "http://lblod.data.gift/file-download-statuses/success"
	DownloadFailure   = "http://lblod.data.gift/file-download-statuses/failure"
)

// Task operations and the job-level operation.
const (
	OperationRegister = "http://lblod.data.gift/id/jobs/concept/TaskOperation/register"
	OperationImport   = "http://lblod.data.gift/id/jobs/concept/TaskOperation/import"
	OperationHarvest  = "http://lblod.data.gift/id/jobs/concept/JobOperation/automaticSubmissionFlow"
)

// Security schemes for authenticated downloads.
const (
	BasicAuthScheme = "https://www.w3.org/2019/wot/security#BasicSecurityScheme"
	OAuth2Scheme    = "https://www.w3.org/2019/wot/security#OAuth2SecurityScheme"
)

// Creator is attached to every entity this service mints.
const Creator = "http://lblod.data.gift/services/submission-harvester"

// URI prefixes for minted identifiers.
const (
	JobURIPrefix        = "http://data.lblod.info/id/job/"
	TaskURIPrefix       = "http://data.lblod.info/id/task/"
	ContainerURIPrefix  = "http://data.lblod.info/id/container/"
	CollectionURIPrefix = "http://data.lblod.info/id/harvest-collection/"
	RemoteURIPrefix     = "http://data.lblod.info/id/remote-data-objects/"
	AuthConfURIPrefix   = "http://data.lblod.info/authentications/"
	SecConfURIPrefix    = "http://data.lblod.info/configurations/"
	CredsURIPrefix      = "http://data.lblod.info/credentials/"
	ErrorURIPrefix      = "http://data.lblod.info/errors/"
)

// ErrorGraph receives Error records that cannot be tied to a tenant graph.
const ErrorGraph = "http://mu.semte.ch/graphs/error"

var prefixTable = map[string]string{
	"adms":      "http://www.w3.org/ns/adms#",
	"cogs":      "http://vocab.deri.ie/cogs#",
	"dbpedia":   "http://dbpedia.org/ontology/",
	"dct":       "http://purl.org/dc/terms/",
	"dgftOauth": "http://kanselarij.vo.data.gift/vocabularies/oauth-2.0-session/",
	"dgftSec":   "http://lblod.data.gift/vocabularies/security/",
	"ext":       "http://mu.semte.ch/vocabularies/ext/",
	"foaf":      "http://xmlns.com/foaf/0.1/",
	"hrvst":     "http://lblod.data.gift/vocabularies/harvesting/",
	"http":      "http://www.w3.org/2011/http#",
	"meb":       "http://rdf.myexperiment.org/ontologies/base/",
	"mu":        "http://mu.semte.ch/vocabularies/core/",
	"muAccount": "http://mu.semte.ch/vocabularies/account/",
	"nfo":       "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#",
	"nie":       "http://www.semanticdesktop.org/ontologies/2007/01/19/nie#",
	"oslc":      "http://open-services.net/ns/core#",
	"pav":       "http://purl.org/pav/",
	"prov":      "http://www.w3.org/ns/prov#",
	"rdf":       "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rpioHttp":  "http://redpencil.data.gift/vocabularies/http/",
	"schema":    "http://schema.org/",
	"task":      "http://redpencil.data.gift/vocabularies/tasks/",
	"tasko":     "http://lblod.data.gift/id/jobs/concept/TaskOperation/",
	"wotSec":    "https://www.w3.org/2019/wot/security#",
	"xsd":       "http://www.w3.org/2001/XMLSchema#",
}

// Prefixes is the PREFIX header prepended to every query this service issues.
var Prefixes = buildPrefixes()

func buildPrefixes() string {
	keys := make([]string, 0, len(prefixTable))
	for k := range prefixTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", k, prefixTable[k])
	}
	return b.String()
}
