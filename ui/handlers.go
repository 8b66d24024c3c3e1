package ui

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"gomdp/app"
	"gomdp/domain/core"
	"gomdp/domain/mdp"
	"gomdp/models"
)

// maxInlineCells caps the factor tables rendered value-by-value. Larger
// factors show shape and range only; the payload download has the rest.
const maxInlineCells = 64

// handleIndex renders the model catalog with per-model run counts
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	records, err := a.models.List(r.Context(), 100)
	if err != nil {
		http.Error(w, "Failed to load models", http.StatusInternalServerError)
		return
	}

	type modelRow struct {
		Record   *models.ModelRecord
		RunCount int
		LastRun  string
	}
	rows := make([]modelRow, 0, len(records))
	totalRuns := 0
	for _, record := range records {
		runs, err := a.runs.ListRuns(r.Context(), record.ID, 0)
		if err != nil {
			http.Error(w, "Failed to load runs", http.StatusInternalServerError)
			return
		}
		row := modelRow{Record: record, RunCount: len(runs)}
		if len(runs) > 0 {
			row.LastRun = runs[0].StartedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, row)
		totalRuns += len(runs)
	}

	data := map[string]interface{}{
		"Title":      "GoMDP",
		"Models":     rows,
		"ModelCount": len(rows),
		"RunCount":   totalRuns,
	}
	a.renderTemplate(w, "index.html", data)
}

// handleModelDetail renders one stored model: variables, reward factors with
// their value tables, and every CPT block small enough to show inline.
func (a *App) handleModelDetail(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseModelID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid model id", http.StatusBadRequest)
		return
	}

	problem, record, err := a.catalog.LoadModel(r.Context(), id)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load model", http.StatusInternalServerError)
		return
	}
	reg := problem.Variables

	type rewardCell struct {
		Assignment string
		Value      float64
		StdDev     float64
	}
	type rewardRow struct {
		ID    int32
		Scope string
		Size  int
		Min   float64
		Max   float64
		Noisy bool
		Cells []rewardCell
	}
	rewards := make([]rewardRow, 0, len(problem.Rewards))
	for _, f := range problem.Rewards {
		row := rewardRow{ID: f.ID, Scope: formatDomain(f.Scope), Size: len(f.Values)}
		if len(f.Values) > 0 {
			row.Min, row.Max = f.Values[0], f.Values[0]
		}
		for _, v := range f.Values {
			if v < row.Min {
				row.Min = v
			}
			if v > row.Max {
				row.Max = v
			}
		}
		for _, sd := range f.StdDev {
			if sd > 0 {
				row.Noisy = true
				break
			}
		}
		if len(f.Values) <= maxInlineCells {
			for idx, v := range f.Values {
				vals, _ := f.Scope.Unflatten(reg, idx)
				row.Cells = append(row.Cells, rewardCell{
					Assignment: formatAssignment(f.Scope, vals),
					Value:      v,
					StdDev:     f.StdDev[idx],
				})
			}
		}
		rewards = append(rewards, row)
	}

	type cptBlock struct {
		Assignment string
		Probs      []float64
	}
	type transitionRow struct {
		Target     mdp.VarID
		TargetSize int
		Conditions string
		Blocks     int
		Rows       []cptBlock
	}
	transitions := make([]transitionRow, 0, len(problem.Transitions))
	for _, f := range problem.Transitions {
		targetSize, _ := f.TargetSize(reg)
		condSize, _ := f.Conditions.Size(reg)
		row := transitionRow{
			Target:     f.Target,
			TargetSize: targetSize,
			Conditions: formatDomain(f.Conditions),
			Blocks:     condSize,
		}
		if len(f.Values) <= maxInlineCells {
			for k := 0; k < condSize; k++ {
				vals, _ := f.Conditions.Unflatten(reg, k)
				probs := make([]float64, targetSize)
				copy(probs, f.Values[k*targetSize:(k+1)*targetSize])
				row.Rows = append(row.Rows, cptBlock{
					Assignment: formatAssignment(f.Conditions, vals),
					Probs:      probs,
				})
			}
		}
		transitions = append(transitions, row)
	}

	runs, err := a.runs.ListRuns(r.Context(), id, 50)
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":       record.Name + " - GoMDP",
		"Record":      record,
		"Description": renderMarkdown(record.Description),
		"StateVars":   reg.StateVariables(),
		"ActionVars":  reg.ActionVariables(),
		"Rewards":     rewards,
		"Transitions": transitions,
		"Runs":        runs,
	}
	a.renderTemplate(w, "model.html", data)
}

// handleModelPayload serves the stored wire payload as a file download.
func (a *App) handleModelPayload(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseModelID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid model id", http.StatusBadRequest)
		return
	}

	record, err := a.models.GetByID(r.Context(), id)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load model", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Name+".fmdp"))
	w.Write(record.Payload)
}

// handleRunDetail renders one run: its manifest row, summary statistics, and
// a sample of recorded outcomes.
func (a *App) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	record, err := a.runs.GetRun(r.Context(), id)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	modelName := record.ModelID.String()
	if model, err := a.models.GetByID(r.Context(), record.ModelID); err == nil {
		modelName = model.Name
	}

	// A failed run may have recorded nothing; the page still renders.
	summary, err := a.runner.Summary(r.Context(), id)
	if err != nil {
		summary = nil
	}

	type distRow struct {
		Name string
		D    app.Distribution
	}
	var distributions []distRow
	if summary != nil {
		distributions = append(distributions, distRow{Name: "Reward per step", D: summary.RewardPerStep})
		ids := make([]int32, 0, len(summary.RewardByFactor))
		for fid := range summary.RewardByFactor {
			ids = append(ids, fid)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, fid := range ids {
			distributions = append(distributions, distRow{
				Name: fmt.Sprintf("Reward factor %d", fid),
				D:    summary.RewardByFactor[fid],
			})
		}
		distributions = append(distributions, distRow{Name: "Act time (ms)", D: summary.ActMs})
		distributions = append(distributions, distRow{Name: "Update time (ms)", D: summary.UpdateMs})
	}

	outcomes, err := a.runs.ListOutcomes(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load outcomes", http.StatusInternalServerError)
		return
	}

	const sampleSize = 20
	sample := outcomes
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	type outcomeRow struct {
		Episode  int
		Timestep int
		Reward   float64
		ActMs    float64
		UpdateMs float64
	}
	sampleRows := make([]outcomeRow, 0, len(sample))
	for i := range sample {
		o := &sample[i]
		sampleRows = append(sampleRows, outcomeRow{
			Episode:  o.Episode,
			Timestep: o.Timestep,
			Reward:   o.TotalReward(),
			ActMs:    float64(o.ActTime.Nanoseconds()) / 1e6,
			UpdateMs: float64(o.UpdateTime.Nanoseconds()) / 1e6,
		})
	}

	data := map[string]interface{}{
		"Title":         fmt.Sprintf("Run %s - GoMDP", shortID(record.ID.String())),
		"Record":        record,
		"ModelName":     modelName,
		"Summary":       summary,
		"Distributions": distributions,
		"Outcomes":      sampleRows,
		"OutcomeCount":  len(outcomes),
		"Sampled":       len(outcomes) > len(sampleRows),
	}
	a.renderTemplate(w, "run.html", data)
}

// formatDomain renders a factor domain as its variable id list.
func formatDomain(d mdp.Domain) string {
	parts := make([]string, len(d))
	for i, id := range d {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

// formatAssignment renders one joint assignment as "id=value" pairs in
// domain order.
func formatAssignment(scope mdp.Domain, values []int) string {
	parts := make([]string, len(scope))
	for i, id := range scope {
		parts[i] = fmt.Sprintf("%d=%d", id, values[i])
	}
	return strings.Join(parts, ", ")
}

// shortID trims a uuid to its first block for headings.
func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
