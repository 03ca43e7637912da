package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/entities/catalog"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
)

type fakeBackend struct {
	mu sync.Mutex

	lookups    catalog.LookupOptions
	lookupsErr error
	lookupGate chan struct{}

	sets    []catalog.PermissionEntry
	setsErr error

	groups    []catalog.PermissionEntry
	groupsErr error

	saveErr  error
	saveGate chan struct{}
	saved    []collaborators.SaveRuleRequest
	// saveCtxErr is the state of the context the last write ran under.
	saveCtxErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		lookups: catalog.LookupOptions{
			JobTitles:   []string{"Engineer", "Manager"},
			Departments: []string{"R&D", "Sales"},
			Profiles:    []string{"Standard User"},
			Roles:       []string{"CEO"},
		},
		sets:   []catalog.PermissionEntry{{ID: "ps1", Label: "Sales Cloud"}, {ID: "ps2", Label: "Reports"}},
		groups: []catalog.PermissionEntry{{ID: "g1", Label: "Engineering Bundle"}},
	}
}

func (f *fakeBackend) GetLookupValues(ctx context.Context) (catalog.LookupOptions, error) {
	if f.lookupGate != nil {
		<-f.lookupGate
	}
	return f.lookups, f.lookupsErr
}

func (f *fakeBackend) GetPermissionSets(context.Context) ([]catalog.PermissionEntry, error) {
	return f.sets, f.setsErr
}

func (f *fakeBackend) GetPermissionSetGroups(context.Context) ([]catalog.PermissionEntry, error) {
	return f.groups, f.groupsErr
}

func (f *fakeBackend) SaveDynamicRule(ctx context.Context, req collaborators.SaveRuleRequest) error {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCtxErr = ctx.Err()
	if f.saveCtxErr != nil {
		return f.saveCtxErr
	}
	f.saved = append(f.saved, req)
	return f.saveErr
}

func (f *fakeBackend) savedRequests() []collaborators.SaveRuleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]collaborators.SaveRuleRequest(nil), f.saved...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.items...)
}

type remoteErr struct {
	msg string
}

func (e *remoteErr) Error() string         { return "remote call failed" }
func (e *remoteErr) RemoteMessage() string { return e.msg }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newBuilder(t *testing.T, f *fakeBackend, withGroups bool) (*services.RuleBuilder, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	cfg := services.RuleBuilderConfig{
		Lookups:        f,
		PermissionSets: f,
		Saver:          f,
		Notifier:       n,
		Logger:         quietLogger(),
	}
	if withGroups {
		cfg.PermissionSetGroups = f
	}
	return services.NewRuleBuilder(cfg), n
}

func fillCriteria(b *services.RuleBuilder) {
	b.SetField(ruledraft.FieldJobTitle, "Engineer")
	b.SetField(ruledraft.FieldDepartment, "R&D")
}

func TestRuleBuilder_StepTransitions(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t, newFakeBackend(), true)
	assert.Equal(t, ruledraft.StepDefineCriteria, b.Snapshot().Step)

	b.SetField(ruledraft.FieldJobTitle, "Engineer")
	snap := b.SetField(ruledraft.FieldDepartment, "R&D")
	assert.Equal(t, ruledraft.StepAssignPermissions, snap.Step)
	assert.Empty(t, snap.Summary())

	snap = b.SetPermissionSetSelection([]string{"ps1"})
	assert.Equal(t, ruledraft.StepReviewAndSave, snap.Step)
	assert.Contains(t, snap.Summary(), "Engineer")
	assert.Contains(t, snap.Summary(), "R&D")

	snap = b.SetActive(true)
	assert.Equal(t, ruledraft.StepReviewAndSave, snap.Step)
	assert.True(t, snap.Draft.IsActive)

	snap = b.SetPermissionSetSelection(nil)
	assert.Equal(t, ruledraft.StepAssignPermissions, snap.Step)
	assert.Equal(t, "Engineer", snap.Draft.JobTitle, "other slots stay untouched")
	assert.True(t, snap.Draft.IsActive)

	snap = b.Reset()
	assert.Equal(t, ruledraft.StepDefineCriteria, snap.Step)
	assert.True(t, snap.Draft.IsZero())
}

func TestRuleBuilder_SnapshotsAreImmutable(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t, newFakeBackend(), true)
	first := b.SetPermissionSetSelection([]string{"ps1", "ps1", "ps2"})
	assert.Equal(t, []string{"ps1", "ps2"}, first.Draft.PermissionSetIDs)

	first.Draft.PermissionSetIDs[0] = "tampered"
	second := b.SetActive(true)

	assert.Equal(t, []string{"ps1", "ps2"}, second.Draft.PermissionSetIDs)
	assert.Greater(t, second.Version, first.Version)
}

func TestRuleBuilder_PublishesStateChanged(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t, newFakeBackend(), true)
	var versions []uint64
	unsubscribe := b.Subscribe(func(e *services.StateChanged) {
		versions = append(versions, e.Snapshot.Version)
	})

	b.SetField(ruledraft.FieldJobTitle, "Engineer")
	b.SetActive(true)
	unsubscribe()
	b.SetActive(false)

	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestRuleBuilder_UnknownFieldPanics(t *testing.T) {
	t.Parallel()

	b, _ := newBuilder(t, newFakeBackend(), true)
	assert.Panics(t, func() { b.SetField(ruledraft.Field("salary"), "1") })
	assert.Equal(t, uint64(0), b.Snapshot().Version)
}

func TestRuleBuilder_GroupDimensionDisabled(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	b, _ := newBuilder(t, f, false)
	b.Init(context.Background())
	require.NoError(t, b.Wait())

	snap := b.SetPermissionSetGroupSelection([]string{"g1"})
	assert.False(t, snap.GroupsEnabled)
	assert.Empty(t, snap.Draft.PermissionSetGroupIDs)
	assert.Empty(t, snap.PermissionSetGroups)
	assert.Len(t, snap.PermissionSets, 2)
}

func TestRuleBuilder_InitLoadsCatalogs(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	b, n := newBuilder(t, f, true)
	b.Init(context.Background())
	b.Init(context.Background())
	require.NoError(t, b.Wait())

	snap := b.Snapshot()
	assert.Equal(t, f.lookups.JobTitles, snap.Lookups.JobTitles)
	assert.Equal(t, f.sets, snap.PermissionSets)
	assert.Equal(t, f.groups, snap.PermissionSetGroups)
	assert.Empty(t, snap.LoadErrors)
	assert.False(t, snap.Loading)
	assert.Empty(t, n.all())
}

func TestRuleBuilder_LoadFailureKeepsOtherCatalogs(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	f.setsErr = errors.New("boom")
	b, n := newBuilder(t, f, true)
	b.Init(context.Background())

	err := b.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission_sets")

	snap := b.Snapshot()
	assert.Equal(t, f.lookups.Departments, snap.Lookups.Departments)
	assert.Empty(t, snap.PermissionSets)
	assert.Len(t, snap.PermissionSetGroups, 1)
	assert.Contains(t, snap.LoadErrors, catalog.DatasetPermissionSets)

	got := n.all()
	require.Len(t, got, 1)
	assert.Equal(t, notify.VariantError, got[0].Variant)
	assert.Equal(t, "Data Loading Error", got[0].Title)
	assert.Equal(t, "Unable to load permission sets. Please refresh the page or contact your administrator.", got[0].Message)
}

func TestRuleBuilder_EveryLoadFailureNotifies(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	f.lookupsErr = errors.New("a")
	f.setsErr = errors.New("b")
	f.groupsErr = errors.New("c")
	b, n := newBuilder(t, f, true)
	b.Init(context.Background())
	require.Error(t, b.Wait())

	messages := make([]string, 0, 3)
	for _, item := range n.all() {
		messages = append(messages, item.Message)
	}
	assert.ElementsMatch(t, []string{
		"Unable to load field values. Please refresh the page or contact your administrator.",
		"Unable to load permission sets. Please refresh the page or contact your administrator.",
		"Unable to load permission set groups. Please refresh the page or contact your administrator.",
	}, messages)
	assert.Len(t, b.Snapshot().LoadErrors, 3)
}

func TestRuleBuilder_LoadingUntilLookupsSettle(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	f.lookupGate = make(chan struct{})
	b, _ := newBuilder(t, f, true)
	b.Init(context.Background())

	assert.True(t, b.Snapshot().Loading)
	close(f.lookupGate)
	require.NoError(t, b.Wait())
	assert.False(t, b.Snapshot().Loading)
}

func TestRuleBuilder_SaveMissingInformation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		setup func(b *services.RuleBuilder)
	}{
		{"empty", func(*services.RuleBuilder) {}},
		{"no selection", fillCriteria},
		{"no department", func(b *services.RuleBuilder) {
			b.SetField(ruledraft.FieldJobTitle, "Engineer")
			b.SetPermissionSetSelection([]string{"ps1"})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeBackend()
			b, n := newBuilder(t, f, true)
			tc.setup(b)
			require.True(t, b.Snapshot().IsSaveDisabled())

			_, err := b.Save(context.Background())
			require.ErrorIs(t, err, services.ErrMissingInformation)
			assert.Empty(t, f.savedRequests())

			got := n.all()
			require.Len(t, got, 1)
			assert.Equal(t, "Missing Information", got[0].Title)
			assert.Equal(t, "Please complete all required fields and select at least one permission set or group.", got[0].Message)
		})
	}
}

func TestRuleBuilder_SaveSuccessResets(t *testing.T) {
	t.Parallel()

	for _, active := range []bool{true, false} {
		f := newFakeBackend()
		b, n := newBuilder(t, f, true)
		fillCriteria(b)
		b.SetPermissionSetSelection([]string{"ps1"})
		b.SetActive(active)

		var saved []*services.RuleSaved
		b.Subscribe(func(e *services.RuleSaved) { saved = append(saved, e) })

		snap, err := b.Save(context.Background())
		require.NoError(t, err)
		assert.True(t, snap.Draft.IsZero())
		assert.Equal(t, ruledraft.StepDefineCriteria, snap.Step)
		assert.False(t, snap.Saving)

		reqs := f.savedRequests()
		require.Len(t, reqs, 1)
		assert.Equal(t, collaborators.SaveRuleRequest{
			JobTitle:              "Engineer",
			Department:            "R&D",
			PermissionSetIDs:      []string{"ps1"},
			PermissionSetGroupIDs: []string{},
			IsActive:              active,
		}, reqs[0])
		require.Len(t, saved, 1)

		got := n.all()
		require.Len(t, got, 1)
		assert.Equal(t, notify.VariantSuccess, got[0].Variant)
		assert.Equal(t, "Success", got[0].Title)
		if active {
			assert.Contains(t, got[0].Message, "activated")
		} else {
			assert.Contains(t, got[0].Message, "saved as inactive")
		}
	}
}

func TestRuleBuilder_SaveOutlivesCanceledCaller(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	b, n := newBuilder(t, f, false)
	fillCriteria(b)
	b.SetPermissionSetSelection([]string{"ps1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := b.Save(ctx)
	require.NoError(t, err)
	assert.NoError(t, f.saveCtxErr)
	assert.Len(t, f.savedRequests(), 1)
	assert.True(t, snap.Draft.IsZero())

	got := n.all()
	require.Len(t, got, 1)
	assert.Equal(t, notify.VariantSuccess, got[0].Variant)
}

func TestRuleBuilder_SaveFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	f.saveErr = &remoteErr{msg: "DUPLICATE_VALUE: rule exists"}
	b, n := newBuilder(t, f, true)
	fillCriteria(b)
	b.SetPermissionSetGroupSelection([]string{"g1"})

	snap, err := b.Save(context.Background())
	var saveErr *services.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, services.SaveFailureDuplicate, saveErr.Kind)
	assert.Equal(t, "DUPLICATE_VALUE: rule exists", saveErr.Message)
	assert.Equal(t, []string{"g1"}, snap.Draft.PermissionSetGroupIDs)
	assert.Equal(t, ruledraft.StepReviewAndSave, snap.Step)

	got := n.all()
	require.Len(t, got, 1)
	assert.Equal(t, notify.VariantError, got[0].Variant)
	assert.Equal(t, "Duplicate Rule", got[0].Title)
}

func TestRuleBuilder_SaveInProgressIsRefused(t *testing.T) {
	t.Parallel()

	f := newFakeBackend()
	f.saveGate = make(chan struct{})
	b, _ := newBuilder(t, f, true)
	fillCriteria(b)
	b.SetPermissionSetSelection([]string{"ps1"})

	saving := make(chan struct{})
	b.Subscribe(func(e *services.StateChanged) {
		if e.Snapshot.Saving {
			close(saving)
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := b.Save(context.Background())
		done <- err
	}()
	<-saving

	snap, err := b.Save(context.Background())
	require.ErrorIs(t, err, services.ErrSaveInProgress)
	assert.True(t, snap.Saving)
	assert.True(t, snap.Loading)

	close(f.saveGate)
	require.NoError(t, <-done)
	assert.Len(t, f.savedRequests(), 1)
	assert.False(t, b.Snapshot().Saving)
}

func TestClassifySaveFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		message string
		kind    services.SaveFailureKind
		title   string
		text    string
	}{
		{"DUPLICATE_VALUE", services.SaveFailureDuplicate, "Duplicate Rule", "A rule with these criteria already exists. Please modify your criteria."},
		{"found a duplicate row", services.SaveFailureDuplicate, "Duplicate Rule", "A rule with these criteria already exists. Please modify your criteria."},
		{"ACCESS_DENIED", services.SaveFailureAccessDenied, "Access Denied", "You don't have permission to create this rule. Please contact your administrator."},
		{"insufficient access rights", services.SaveFailureAccessDenied, "Access Denied", "You don't have permission to create this rule. Please contact your administrator."},
		{"FIELD_CUSTOM_VALIDATION_EXCEPTION: bad title", services.SaveFailureFieldValidation, "Validation Error", "FIELD_CUSTOM_VALIDATION_EXCEPTION: bad title"},
		{"duplicate ACCESS_DENIED", services.SaveFailureDuplicate, "Duplicate Rule", "A rule with these criteria already exists. Please modify your criteria."},
		{"Duplicate", services.SaveFailureUnknown, "Error", "Failed to save: Duplicate"},
		{"timeout", services.SaveFailureUnknown, "Error", "Failed to save: timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.kind, services.ClassifySaveFailure(tc.message))
			n := (&services.SaveError{Kind: tc.kind, Message: tc.message}).Notification()
			assert.Equal(t, tc.title, n.Title)
			assert.Equal(t, tc.text, n.Message)
			assert.Equal(t, notify.VariantError, n.Variant)
		})
	}
}

func TestFailureMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DUPLICATE_VALUE", services.FailureMessage(&remoteErr{msg: "DUPLICATE_VALUE"}))
	assert.Equal(t, "remote call failed", services.FailureMessage(&remoteErr{}))
	assert.Equal(t, "plain", services.FailureMessage(errors.New("plain")))
	assert.Equal(t, "Unknown error occurred", services.FailureMessage(errors.New("")))
}
