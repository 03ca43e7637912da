package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/pkg/eventbus"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
)

// Snapshot is an immutable copy of everything a view renders. Observers may
// receive snapshots out of order and should keep the highest Version.
type Snapshot struct {
	Version             uint64                     `json:"version"`
	Draft               ruledraft.Draft            `json:"-"`
	Step                ruledraft.ProgressStep     `json:"step"`
	Lookups             catalog.LookupOptions      `json:"lookups"`
	PermissionSets      []catalog.PermissionEntry  `json:"permissionSets"`
	PermissionSetGroups []catalog.PermissionEntry  `json:"permissionSetGroups"`
	GroupsEnabled       bool                       `json:"groupsEnabled"`
	LoadErrors          map[catalog.Dataset]string `json:"loadErrors"`
	Loading             bool                       `json:"loading"`
	Saving              bool                       `json:"saving"`
}

func (s Snapshot) Summary() string {
	return ruledraft.Summary(s.Draft)
}

func (s Snapshot) IsSaveDisabled() bool {
	return ruledraft.IsSaveDisabled(s.Draft)
}

// StateChanged is published after every mutation, load completion and save
// transition.
type StateChanged struct {
	Snapshot Snapshot
}

// RuleSaved is published once the remote system accepted a rule.
type RuleSaved struct {
	Request collaborators.SaveRuleRequest
}

type saveState int

const (
	saveIdle saveState = iota
	saveValidating
	saveSaving
)

type RuleBuilderConfig struct {
	Lookups        collaborators.LookupSource
	PermissionSets collaborators.PermissionSetSource
	// PermissionSetGroups is optional; nil disables the group dimension.
	PermissionSetGroups collaborators.PermissionSetGroupSource
	Saver               collaborators.RuleSaver
	Notifier            notify.Notifier
	Events              eventbus.EventBus
	Logger              *logrus.Entry
}

// RuleBuilder holds the state of one rule being authored. It is safe for
// concurrent use; the lock is never held across remote calls or while
// observers run.
type RuleBuilder struct {
	lookupSource collaborators.LookupSource
	setSource    collaborators.PermissionSetSource
	groupSource  collaborators.PermissionSetGroupSource
	saver        collaborators.RuleSaver
	notifier     notify.Notifier
	events       eventbus.EventBus
	log          *logrus.Entry

	initOnce sync.Once
	loads    errgroup.Group

	mu             sync.Mutex
	version        uint64
	draft          ruledraft.Draft
	lookups        catalog.LookupOptions
	permissionSets []catalog.PermissionEntry
	groups         []catalog.PermissionEntry
	loadErrors     map[catalog.Dataset]string
	lookupsPending bool
	save           saveState
}

func NewRuleBuilder(cfg RuleBuilderConfig) *RuleBuilder {
	if cfg.Lookups == nil || cfg.PermissionSets == nil || cfg.Saver == nil {
		panic("services.NewRuleBuilder: lookup source, permission set source and saver are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Events == nil {
		cfg.Events = eventbus.NewEventPublisher(cfg.Logger.Logger)
	}
	return &RuleBuilder{
		lookupSource: cfg.Lookups,
		setSource:    cfg.PermissionSets,
		groupSource:  cfg.PermissionSetGroups,
		saver:        cfg.Saver,
		notifier:     cfg.Notifier,
		events:       cfg.Events,
		log:          cfg.Logger,
		draft:        ruledraft.Draft{}.Clone(),
		lookups:      catalog.LookupOptions{}.Clone(),
		loadErrors:   map[catalog.Dataset]string{},
	}
}

// Subscribe registers an observer on the builder's event bus, e.g.
// func(*StateChanged) or func(*notify.Raised) when the notifier republishes
// on the same bus.
func (b *RuleBuilder) Subscribe(handler any) (unsubscribe func()) {
	return b.events.Subscribe(handler)
}

func (b *RuleBuilder) GroupsEnabled() bool {
	return b.groupSource != nil
}

func (b *RuleBuilder) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *RuleBuilder) snapshotLocked() Snapshot {
	loadErrors := make(map[catalog.Dataset]string, len(b.loadErrors))
	for k, v := range b.loadErrors {
		loadErrors[k] = v
	}
	return Snapshot{
		Version:             b.version,
		Draft:               b.draft.Clone(),
		Step:                ruledraft.ProgressStepOf(b.draft),
		Lookups:             b.lookups.Clone(),
		PermissionSets:      catalog.CloneEntries(b.permissionSets),
		PermissionSetGroups: catalog.CloneEntries(b.groups),
		GroupsEnabled:       b.groupSource != nil,
		LoadErrors:          loadErrors,
		Loading:             b.lookupsPending || b.save == saveSaving,
		Saving:              b.save == saveSaving,
	}
}

// commitLocked bumps the version and returns the snapshot to publish once the
// lock is released.
func (b *RuleBuilder) commitLocked() Snapshot {
	b.version++
	return b.snapshotLocked()
}

func (b *RuleBuilder) publish(snap Snapshot) {
	b.events.Publish(&StateChanged{Snapshot: snap})
}

func (b *RuleBuilder) mutate(action string, fields logrus.Fields, fn func(d ruledraft.Draft) ruledraft.Draft) Snapshot {
	b.mu.Lock()
	previous := ruledraft.ProgressStepOf(b.draft)
	b.draft = fn(b.draft)
	snap := b.commitLocked()
	b.mu.Unlock()

	b.log.WithFields(fields).WithFields(logrus.Fields{
		"action":                  action,
		"previous_step":           previous.String(),
		"step":                    snap.Step.String(),
		"permission_sets":         len(snap.Draft.PermissionSetIDs),
		"permission_set_groups":   len(snap.Draft.PermissionSetGroupIDs),
		"has_sufficient_criteria": !snap.IsSaveDisabled(),
	}).Debug("rule draft updated")

	b.publish(snap)
	return snap
}

func (b *RuleBuilder) SetField(field ruledraft.Field, value string) Snapshot {
	if !field.Valid() {
		panic(fmt.Sprintf("services.RuleBuilder.SetField: %v: %q", ruledraft.ErrUnknownField, field))
	}
	return b.mutate("set_field", logrus.Fields{"field": string(field), "value": value}, func(d ruledraft.Draft) ruledraft.Draft {
		return d.With(field, value)
	})
}

func (b *RuleBuilder) SetPermissionSetSelection(ids []string) Snapshot {
	return b.mutate("select_permission_sets", logrus.Fields{"selected": ids}, func(d ruledraft.Draft) ruledraft.Draft {
		return d.WithPermissionSets(ids)
	})
}

func (b *RuleBuilder) SetPermissionSetGroupSelection(ids []string) Snapshot {
	if b.groupSource == nil {
		if len(ids) > 0 {
			b.log.WithField("selected", ids).Warn("permission set groups are disabled, selection ignored")
		}
		ids = nil
	}
	return b.mutate("select_permission_set_groups", logrus.Fields{"selected": ids}, func(d ruledraft.Draft) ruledraft.Draft {
		return d.WithPermissionSetGroups(ids)
	})
}

func (b *RuleBuilder) SetActive(active bool) Snapshot {
	return b.mutate("set_active", logrus.Fields{"active": active}, func(d ruledraft.Draft) ruledraft.Draft {
		return d.WithActive(active)
	})
}

func (b *RuleBuilder) Reset() Snapshot {
	return b.mutate("reset", logrus.Fields{}, func(ruledraft.Draft) ruledraft.Draft {
		return ruledraft.Draft{}.Clone()
	})
}

// Init starts the catalog loads and returns immediately. Calls after the
// first are no-ops.
func (b *RuleBuilder) Init(ctx context.Context) {
	b.initOnce.Do(func() {
		b.mu.Lock()
		b.lookupsPending = true
		snap := b.commitLocked()
		b.mu.Unlock()
		b.publish(snap)

		b.loads.Go(func() error {
			opts, err := b.lookupSource.GetLookupValues(ctx)
			return b.completeLoad(ctx, catalog.DatasetLookups, err, func() {
				b.lookups = opts.Clone()
			})
		})
		b.loads.Go(func() error {
			entries, err := b.setSource.GetPermissionSets(ctx)
			return b.completeLoad(ctx, catalog.DatasetPermissionSets, err, func() {
				b.permissionSets = catalog.CloneEntries(entries)
			})
		})
		if b.groupSource != nil {
			b.loads.Go(func() error {
				entries, err := b.groupSource.GetPermissionSetGroups(ctx)
				return b.completeLoad(ctx, catalog.DatasetPermissionSetGroups, err, func() {
					b.groups = catalog.CloneEntries(entries)
				})
			})
		}
	})
}

// Wait blocks until every load started by Init has settled and returns the
// first load error.
func (b *RuleBuilder) Wait() error {
	return b.loads.Wait()
}

func (b *RuleBuilder) completeLoad(ctx context.Context, dataset catalog.Dataset, err error, apply func()) error {
	b.mu.Lock()
	if dataset == catalog.DatasetLookups {
		b.lookupsPending = false
	}
	if err == nil {
		apply()
		delete(b.loadErrors, dataset)
	} else {
		b.loadErrors[dataset] = loadFailureMessages[dataset]
	}
	snap := b.commitLocked()
	b.mu.Unlock()

	recordLoad(dataset, err)
	log := b.log.WithField("dataset", string(dataset))
	if err != nil {
		log.WithError(err).Error("failed to load catalog")
		b.notifier.Notify(ctx, loadFailureNotification(dataset))
		b.publish(snap)
		return fmt.Errorf("load %s: %w", dataset, err)
	}

	log.WithFields(logrus.Fields{
		"permission_sets":       len(snap.PermissionSets),
		"permission_set_groups": len(snap.PermissionSetGroups),
		"job_titles":            len(snap.Lookups.JobTitles),
	}).Debug("catalog loaded")
	b.publish(snap)
	return nil
}

// Save validates the draft and issues exactly one write. On success the draft
// is reset; on failure it is kept and a *SaveError is returned.
func (b *RuleBuilder) Save(ctx context.Context) (Snapshot, error) {
	b.mu.Lock()
	if b.save != saveIdle {
		snap := b.snapshotLocked()
		b.mu.Unlock()
		b.log.Debug("save ignored, another save is in progress")
		recordSave("in_progress")
		return snap, ErrSaveInProgress
	}

	b.save = saveValidating
	if ruledraft.IsSaveDisabled(b.draft) {
		b.save = saveIdle
		snap := b.snapshotLocked()
		b.mu.Unlock()
		b.log.WithField("step", snap.Step.String()).Debug("save rejected, draft incomplete")
		recordSave("missing_information")
		b.notifier.Notify(ctx, missingInformationNotification())
		return snap, ErrMissingInformation
	}

	req := collaborators.NewSaveRuleRequest(b.draft)
	b.save = saveSaving
	snap := b.commitLocked()
	b.mu.Unlock()
	b.publish(snap)

	b.log.WithFields(logrus.Fields{
		"job_title":             req.JobTitle,
		"department":            req.Department,
		"permission_sets":       len(req.PermissionSetIDs),
		"permission_set_groups": len(req.PermissionSetGroupIDs),
		"active":                req.IsActive,
	}).Debug("saving dynamic rule")

	// Once issued, the write runs to completion even if the caller goes away.
	err := b.saver.SaveDynamicRule(context.WithoutCancel(ctx), req)

	b.mu.Lock()
	b.save = saveIdle
	if err == nil {
		b.draft = ruledraft.Draft{}.Clone()
	}
	snap = b.commitLocked()
	b.mu.Unlock()

	if err != nil {
		failure := newSaveError(err)
		b.log.WithError(err).WithField("kind", string(failure.Kind)).Error("failed to save dynamic rule")
		recordSave(string(failure.Kind))
		b.notifier.Notify(ctx, failure.Notification())
		b.publish(snap)
		return snap, failure
	}

	recordSave("saved")
	b.notifier.Notify(ctx, savedNotification(req.IsActive))
	b.publish(snap)
	b.events.Publish(&RuleSaved{Request: req})
	return snap, nil
}
