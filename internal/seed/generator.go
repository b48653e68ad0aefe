// Package seed generates synthetic Galaxy usage histories for populating a
// graph store.
package seed

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/ric/internal/storage"
)

// Platform is the name of the platform node every generated tool belongs to.
const Platform = "Galaxy Platform"

// jobSpacing separates consecutive jobs within a session.
const jobSpacing = 5 * time.Minute

// DefaultTools is the reference set of Galaxy tool ids.
var DefaultTools = []string{
	"Galaxy_Upload", "FastQC", "Trimmomatic", "BWA-MEM", "Samtools_view",
	"Samtools_sort", "Samtools_index", "BCFtools_mpileup", "BCFtools_call",
	"GATK_HaplotypeCaller", "Picard_MarkDuplicates", "Bedtools_intersect",
	"featureCounts", "STAR", "HISAT2", "Cufflinks", "DESeq2", "MultiQC",
	"BLASTn", "ClustalW", "Cut1", "Filter_by_quality", "ggplot2",
	"PCA_Plot", "Python_script",
}

// Options controls the shape of a generated dataset.
type Options struct {
	Users       int
	MinSessions int
	MaxSessions int
	MinSteps    int
	MaxSteps    int

	// Seed makes generation reproducible.
	Seed int64

	// Tools defaults to DefaultTools.
	Tools []string

	// Now anchors session start times; defaults to time.Now().
	Now time.Time
}

// DefaultOptions returns the reference configuration: 10 users with 2-5
// sessions each and 3-8 distinct tools per session.
func DefaultOptions() Options {
	return Options{
		Users:       10,
		MinSessions: 2,
		MaxSessions: 5,
		MinSteps:    3,
		MaxSteps:    8,
		Seed:        1,
	}
}

// Validate checks that the ranges are usable.
func (o Options) Validate() error {
	tools := o.Tools
	if len(tools) == 0 {
		tools = DefaultTools
	}

	switch {
	case o.Users <= 0:
		return errors.New("users must be positive")
	case o.MinSessions <= 0 || o.MaxSessions < o.MinSessions:
		return fmt.Errorf("invalid session range %d-%d", o.MinSessions, o.MaxSessions)
	case o.MinSteps <= 0 || o.MaxSteps < o.MinSteps:
		return fmt.Errorf("invalid step range %d-%d", o.MinSteps, o.MaxSteps)
	case o.MaxSteps > len(tools):
		return fmt.Errorf("max steps %d exceeds the %d available tools", o.MaxSteps, len(tools))
	}
	return nil
}

// Generate builds a dataset. The same options always yield the same dataset.
func Generate(opts Options) (*storage.Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	tools := opts.Tools
	if len(tools) == 0 {
		tools = DefaultTools
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	g := &generator{rng: rand.New(rand.NewSource(opts.Seed))}

	ds := &storage.Dataset{
		Platform: Platform,
		Tools:    append([]string(nil), tools...),
	}

	for i := 0; i < opts.Users; i++ {
		userID, err := g.id("user_", 8)
		if err != nil {
			return nil, err
		}
		ds.Users = append(ds.Users, userID)

		sessions := g.between(opts.MinSessions, opts.MaxSessions)
		for j := 0; j < sessions; j++ {
			session, err := g.session(userID, tools, opts, now)
			if err != nil {
				return nil, err
			}
			ds.Sessions = append(ds.Sessions, session)
		}
	}

	return ds, nil
}

type generator struct {
	rng *rand.Rand
}

func (g *generator) session(userID string, tools []string, opts Options, now time.Time) (storage.Session, error) {
	id, err := g.id("session_", 12)
	if err != nil {
		return storage.Session{}, err
	}
	session := storage.Session{ID: id, UserID: userID}

	steps := g.between(opts.MinSteps, opts.MaxSteps)
	start := now.Add(-time.Duration(g.between(1, 365)) * 24 * time.Hour)

	// Distinct tools per session, in random order.
	for k, idx := range g.rng.Perm(len(tools))[:steps] {
		jobID, err := g.id("job_", 10)
		if err != nil {
			return storage.Session{}, err
		}
		session.Jobs = append(session.Jobs, storage.Job{
			ID:        jobID,
			ToolID:    tools[idx],
			Timestamp: start.Add(time.Duration(k) * jobSpacing),
		})
	}

	return session, nil
}

// between returns a uniform integer in [lo, hi].
func (g *generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// id returns prefix followed by n hex digits of a random UUID drawn from the
// generator's source.
func (g *generator) id(prefix string, n int) (string, error) {
	u, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return prefix + strings.ReplaceAll(u.String(), "-", "")[:n], nil
}
