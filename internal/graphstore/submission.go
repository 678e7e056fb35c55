package graphstore

import (
	"context"
	"fmt"

	"submission-harvester/internal/models"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// IsSubmitted reports whether the resource already has facts in the tenant
// graph, i.e. was submitted before.
func (s *Store) IsSubmitted(ctx context.Context, graph, resource string) (bool, error) {
	q := fmt.Sprintf(`ASK {
  GRAPH %s {
    %s ?p ?o .
  }
}`, sparql.EscapeURI(graph), sparql.EscapeURI(resource))
	ok, err := s.c.Ask(ctx, q)
	if err != nil {
		return false, fmt.Errorf("is submitted: %w", err)
	}
	return ok, nil
}

// VerifyVendor checks the vendor's key and its right to act for the
// organization against the account graph. Returns the organization id used
// to derive the tenant graph, or "" when the vendor does not check out.
func (s *Store) VerifyVendor(ctx context.Context, accountGraph, vendor, key, organization string) (string, error) {
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?organizationID WHERE {
  GRAPH %s {
    %s a foaf:Agent ;
      muAccount:key %s ;
      muAccount:canActOnBehalfOf %s .
  }
  %s mu:uuid ?organizationID .
}`, vocab.Prefixes,
		sparql.EscapeURI(accountGraph),
		sparql.EscapeURI(vendor),
		sparql.EscapeString(key),
		sparql.EscapeURI(organization),
		sparql.EscapeURI(organization))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("verify vendor: %w", err)
	}
	if len(rows) != 1 {
		return "", nil
	}
	return rows[0]["organizationID"].Value, nil
}

// TaskStatusInfo is one row of a submission status readout.
type TaskStatusInfo struct {
	Task      string            `json:"task"`
	Operation string            `json:"operation"`
	Index     string            `json:"index"`
	Status    models.TaskStatus `json:"status"`
}

// SubmissionStatus is the externally visible progress of one submission.
type SubmissionStatus struct {
	Job          string            `json:"job"`
	Status       models.TaskStatus `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Tasks        []TaskStatusInfo  `json:"tasks"`
}

// SubmissionStatusFor reads the job and task statuses tracking a submitted
// resource.
func (s *Store) SubmissionStatusFor(ctx context.Context, resource string) (*SubmissionStatus, error) {
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?job ?jobStatus ?errorMessage ?task ?taskStatus ?operation ?index WHERE {
  GRAPH ?g {
    ?job a cogs:Job ;
      dct:subject %s ;
      dct:creator %s ;
      adms:status ?jobStatus .
    OPTIONAL {
      ?job task:error ?error .
      ?error oslc:message ?errorMessage .
    }
    OPTIONAL {
      ?task dct:isPartOf ?job ;
        adms:status ?taskStatus ;
        task:operation ?operation ;
        task:index ?index .
    }
  }
}
ORDER BY ?index`, vocab.Prefixes,
		sparql.EscapeURI(resource),
		sparql.EscapeURI(vocab.Creator))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("submission status: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("submission %s: %w", resource, ErrNotResolved)
	}

	status := &SubmissionStatus{
		Job:          rows[0]["job"].Value,
		ErrorMessage: rows[0]["errorMessage"].Value,
	}
	if st, ok := models.ParseTaskStatus(rows[0]["jobStatus"].Value); ok {
		status.Status = st
	}
	seen := map[string]bool{}
	for _, row := range rows {
		task := row["task"].Value
		if task == "" || seen[task] {
			continue
		}
		seen[task] = true
		info := TaskStatusInfo{
			Task:      task,
			Operation: row["operation"].Value,
			Index:     row["index"].Value,
		}
		if st, ok := models.ParseTaskStatus(row["taskStatus"].Value); ok {
			info.Status = st
		}
		status.Tasks = append(status.Tasks, info)
	}
	return status, nil
}
