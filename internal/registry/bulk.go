package registry

import (
	"context"
	"strings"
)

// BulkRegister allocates a number for each application in order.
// A failed entry does not stop the ones after it.
func (r *Registry) BulkRegister(ctx context.Context, apps []Application) []BulkResult {
	results := make([]BulkResult, 0, len(apps))
	for _, app := range apps {
		res := BulkResult{ApplicationName: app.Name}

		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		n, err := r.Allocate(ctx, app.Name, app.Description)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Number = n
			res.Success = true
		}
		results = append(results, res)
	}

	r.logger.Info("bulk registration finished", "requested", len(apps), "succeeded", countSucceeded(results))
	return results
}

// ParseBulk reads one application per line in the form "Name | Description".
// A line without a separator is a bare name; blank names are skipped.
func ParseBulk(text string) []Application {
	var apps []Application
	for _, line := range strings.Split(text, "\n") {
		name, description, _ := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		apps = append(apps, Application{Name: name, Description: strings.TrimSpace(description)})
	}
	return apps
}

func countSucceeded(results []BulkResult) int {
	n := 0
	for _, res := range results {
		if res.Success {
			n++
		}
	}
	return n
}
