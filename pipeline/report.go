package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"wa_ingest/services"
)

// Report aggregates the outcome of one batch run. It is safe for
// concurrent use.
type Report struct {
	mu sync.Mutex

	RunID             uuid.UUID `json:"-"`
	FilesSeen         int       `json:"files_seen"`
	FilesProcessed    int       `json:"files_processed"`
	FileErrors        int       `json:"file_errors"`
	MessagesSeen      int       `json:"messages_seen"`
	DateRejections    int       `json:"date_rejections"`
	Unattributed      int       `json:"unattributed"`
	PropertyRelated   int       `json:"property_related"`
	PropertiesCreated int       `json:"properties_created"`
	UsersCreated      int       `json:"users_created"`
	AgentsCreated     int       `json:"agents_created"`
	Duplicates        int       `json:"duplicates"`
	MessageErrors     int       `json:"message_errors"`
}

// AddResult counts one successfully ingested message.
func (r *Report) AddResult(res *services.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.MessagesSeen++
	switch res.Outcome {
	case services.OutcomeUnattributed:
		r.Unattributed++
	case services.OutcomeDuplicate:
		r.Duplicates++
	}
	if res.PropertyRelated {
		r.PropertyRelated++
	}
	if res.PropertyCreated {
		r.PropertiesCreated++
	}
	if res.UserCreated {
		r.UsersCreated++
	}
	if res.AgentCreated {
		r.AgentsCreated++
	}
}

func (r *Report) AddMessageError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MessagesSeen++
	r.MessageErrors++
}

func (r *Report) AddRejections(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DateRejections += n
}

func (r *Report) AddFile(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.FileErrors++
		return
	}
	r.FilesProcessed++
}

// Errors is the number of failed files plus failed messages.
func (r *Report) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.FileErrors + r.MessageErrors
}

func (r *Report) JSON() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, _ := json.Marshal(r)
	return data
}

// Print writes the human-readable run summary.
func (r *Report) Print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(w, "Ingestion summary")
	fmt.Fprintf(w, "  files processed:     %d/%d\n", r.FilesProcessed, r.FilesSeen)
	fmt.Fprintf(w, "  messages seen:       %d\n", r.MessagesSeen)
	fmt.Fprintf(w, "  date rejections:     %d\n", r.DateRejections)
	fmt.Fprintf(w, "  unattributed:        %d\n", r.Unattributed)
	fmt.Fprintf(w, "  property-related:    %d\n", r.PropertyRelated)
	fmt.Fprintf(w, "  properties created:  %d\n", r.PropertiesCreated)
	fmt.Fprintf(w, "  users created:       %d\n", r.UsersCreated)
	fmt.Fprintf(w, "  agents created:      %d\n", r.AgentsCreated)
	fmt.Fprintf(w, "  duplicates skipped:  %d\n", r.Duplicates)
	fmt.Fprintf(w, "  message errors:      %d\n", r.MessageErrors)
	fmt.Fprintf(w, "  file errors:         %d\n", r.FileErrors)
}
