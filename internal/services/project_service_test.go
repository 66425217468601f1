package services

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uml-studio/engine/internal/cache"
	"github.com/uml-studio/engine/internal/diagram"
	"github.com/uml-studio/engine/internal/models"
	"github.com/uml-studio/engine/internal/repository"
	"github.com/uml-studio/engine/internal/tester"
	appErr "github.com/uml-studio/engine/pkg/errors"
	"github.com/uml-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("info", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type fixture struct {
	db       *gorm.DB
	svc      ProjectService
	diagrams repository.DiagramStore
	owner    *models.User
	intruder *models.User
	project  *models.Project
}

func newFixture(t *testing.T, projectCache cache.ProjectCache) *fixture {
	t.Helper()
	db := tester.NewDB(t)
	users := repository.NewUserRepository(db)
	projects := repository.NewProjectRepository(db)
	diagrams := repository.NewDiagramStore(db)

	owner := &models.User{Name: "Owner", Username: "Owner", Email: "owner@example.com", PasswordHash: "x"}
	intruder := &models.User{Name: "Intruder", Username: "Intruder", Email: "intruder@example.com", PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), owner))
	require.NoError(t, users.Create(context.Background(), intruder))

	svc := NewProjectService(projects, diagrams, projectCache)
	p, err := svc.CreateProject(context.Background(), owner.ID, &CreateProjectInput{Name: "Shop"})
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, diagrams: diagrams, owner: owner, intruder: intruder, project: p}
}

func decodeDoc(t *testing.T, body string) (*diagram.Document, []byte) {
	t.Helper()
	doc, raw, err := diagram.Decode(strings.NewReader(body))
	require.NoError(t, err)
	return doc, raw
}

func (f *fixture) save(t *testing.T, body string) time.Time {
	t.Helper()
	doc, raw := decodeDoc(t, body)
	at, err := f.svc.SaveDiagram(context.Background(), f.project.ID, f.owner.ID, doc, raw)
	require.NoError(t, err)
	return at
}

// logical flattens a view to names so saves can be compared across id changes.
func logical(view *diagram.ProjectView) ([]string, []string) {
	names := map[uuid.UUID]string{}
	var classes []string
	for _, c := range view.Classes {
		names[c.ID] = c.Name
		classes = append(classes, c.Name)
	}
	var rels []string
	for _, r := range view.Relationships {
		rels = append(rels, names[r.SourceClassID]+"-"+r.RelationshipType+"->"+names[r.TargetClassID])
	}
	sort.Strings(rels)
	return classes, rels
}

const shopDoc = `{
	"classes": [
		{"id": "tmp1", "name": "Order", "attributes": [{"name": "total", "type": "Money", "visibility": "private", "isStatic": false}]},
		{"id": "tmp2", "name": "Item", "position": {"x": 120, "y": 40}}
	],
	"relationships": [
		{"sourceClassId": "tmp1", "targetClassId": "tmp2", "relationshipType": "association", "targetMultiplicity": "*"}
	]
}`

func TestSaveDiagramShopScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	at := f.save(t, shopDoc)
	assert.Equal(t, time.UTC, at.Location())

	view, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", view.Name)
	require.Len(t, view.Classes, 2)
	order, item := view.Classes[0], view.Classes[1]
	assert.Equal(t, "Order", order.Name)
	assert.Equal(t, "Item", item.Name)
	assert.Equal(t, models.Position{X: 120, Y: 40}, item.Position)
	assert.Equal(t, models.Position{}, order.Position)
	require.Len(t, order.Attributes, 1)
	assert.Equal(t, "total", order.Attributes[0].Name)

	require.Len(t, view.Relationships, 1)
	rel := view.Relationships[0]
	assert.Equal(t, order.ID, rel.SourceClassID)
	assert.Equal(t, item.ID, rel.TargetClassID)
	assert.Equal(t, "association", rel.RelationshipType)
	assert.Equal(t, "*", *rel.TargetMultiplicity)
	assert.True(t, at.Equal(view.UpdatedAt))

	var stored models.Project
	require.NoError(t, f.db.First(&stored, "id = ?", f.project.ID).Error)
	assert.JSONEq(t, shopDoc, string(stored.DiagramData))
}

func TestSaveDiagramDropsUnresolvedRelationships(t *testing.T) {
	f := newFixture(t, nil)

	f.save(t, `{
		"classes": [{"id": "a", "name": "A"}, {"id": "b", "name": "B"}],
		"relationships": [
			{"sourceClassId": "a", "targetClassId": "b", "relationshipType": "association"},
			{"sourceClassId": "a", "targetClassId": "missing", "relationshipType": "dependency"},
			{"sourceClassId": "nope", "targetClassId": "b", "relationshipType": "inheritance"}
		]
	}`)

	classes, err := f.diagrams.ListClasses(context.Background(), f.project.ID)
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, c := range classes {
		ids[c.ID] = true
	}

	rels, err := f.diagrams.ListRelationships(context.Background(), f.project.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	for _, r := range rels {
		assert.Equal(t, f.project.ID, r.ProjectID)
		assert.True(t, ids[r.SourceClassID])
		assert.True(t, ids[r.TargetClassID])
	}
}

func TestSaveDiagramIdempotentResave(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.save(t, shopDoc)
	first, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)

	f.save(t, shopDoc)
	second, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)

	c1, r1 := logical(first)
	c2, r2 := logical(second)
	assert.Equal(t, c1, c2)
	assert.Equal(t, r1, r2)
	assert.NotEqual(t, first.Classes[0].ID, second.Classes[0].ID)

	var count int64
	require.NoError(t, f.db.Model(&models.ClassNode{}).Where("project_id = ?", f.project.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSaveDiagramEmptyRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.save(t, shopDoc)

	f.save(t, `{"classes": [], "relationships": []}`)

	var classes, rels int64
	require.NoError(t, f.db.Model(&models.ClassNode{}).Where("project_id = ?", f.project.ID).Count(&classes).Error)
	require.NoError(t, f.db.Model(&models.RelationshipEdge{}).Where("project_id = ?", f.project.ID).Count(&rels).Error)
	assert.Zero(t, classes)
	assert.Zero(t, rels)

	view, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, view.Classes)
	assert.NotNil(t, view.Relationships)
	assert.Empty(t, view.Classes)
	assert.Empty(t, view.Relationships)
}

func TestSaveDiagramAtomicity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.save(t, shopDoc)
	before, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)

	injected := errors.New("injected relationship insert failure")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_relationships", func(tx *gorm.DB) {
		if tx.Statement.Table == "relationship_edges" {
			_ = tx.AddError(injected)
		}
	}))

	doc, raw := decodeDoc(t, `{
		"classes": [{"id": "x", "name": "Replacement"}, {"id": "y", "name": "Other"}],
		"relationships": [{"sourceClassId": "x", "targetClassId": "y", "relationshipType": "composition"}]
	}`)
	_, err = f.svc.SaveDiagram(ctx, f.project.ID, f.owner.ID, doc, raw)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInternal))

	classes, err := f.diagrams.ListClasses(ctx, f.project.ID)
	require.NoError(t, err)
	rels, err := f.diagrams.ListRelationships(ctx, f.project.ID)
	require.NoError(t, err)

	require.Len(t, classes, len(before.Classes))
	for i, c := range classes {
		assert.Equal(t, before.Classes[i].ID, c.ID)
		assert.Equal(t, before.Classes[i].Name, c.Name)
	}
	require.Len(t, rels, 1)
	assert.Equal(t, before.Relationships[0].ID, rels[0].ID)

	var stored models.Project
	require.NoError(t, f.db.First(&stored, "id = ?", f.project.ID).Error)
	assert.JSONEq(t, shopDoc, string(stored.DiagramData))
}

func TestSaveDiagramOwnershipIsolation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.save(t, shopDoc)

	var before models.Project
	require.NoError(t, f.db.First(&before, "id = ?", f.project.ID).Error)

	doc, raw := decodeDoc(t, `{"classes": [], "relationships": []}`)
	_, err := f.svc.SaveDiagram(ctx, f.project.ID, f.intruder.ID, doc, raw)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	_, err = f.svc.GetProject(ctx, f.project.ID, f.intruder.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	_, err = f.svc.ListClasses(ctx, f.project.ID, f.intruder.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	_, err = f.svc.ListRelationships(ctx, f.project.ID, f.intruder.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	err = f.svc.DeleteProject(ctx, f.project.ID, f.intruder.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	var after models.Project
	require.NoError(t, f.db.First(&after, "id = ?", f.project.ID).Error)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	classes, err := f.diagrams.ListClasses(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestSaveDiagramMalformed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	doc, raw := decodeDoc(t, `{"classes": []}`)
	_, err := f.svc.SaveDiagram(ctx, f.project.ID, f.owner.ID, doc, raw)
	assert.True(t, appErr.IsCode(err, appErr.CodeMalformedDocument))

	// not-found is decided before the body is looked at
	_, err = f.svc.SaveDiagram(ctx, uuid.New(), f.owner.ID, doc, raw)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestSaveDiagramWithoutRawKeepsSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	doc, _ := decodeDoc(t, `{"classes": [{"id": 1, "name": "A"}], "relationships": []}`)

	_, err := f.svc.SaveDiagram(context.Background(), f.project.ID, f.owner.ID, doc, nil)
	require.NoError(t, err)

	var stored models.Project
	require.NoError(t, f.db.First(&stored, "id = ?", f.project.ID).Error)
	assert.Contains(t, string(stored.DiagramData), `"name":"A"`)
}

func TestSaveDiagramIgnoresCancellationOnceStarted(t *testing.T) {
	f := newFixture(t, nil)
	doc, raw := decodeDoc(t, shopDoc)

	ctx, cancel := context.WithCancel(context.Background())
	svc := f.svc.(*projectService)
	svc.now = func() time.Time {
		cancel()
		return time.Now()
	}

	_, err := svc.SaveDiagram(ctx, f.project.ID, f.owner.ID, doc, raw)
	require.NoError(t, err)

	classes, err := f.diagrams.ListClasses(context.Background(), f.project.ID)
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestDeleteProjectHidesIt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteProject(ctx, f.project.ID, f.owner.ID))

	_, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	doc, raw := decodeDoc(t, shopDoc)
	_, err = f.svc.SaveDiagram(ctx, f.project.ID, f.owner.ID, doc, raw)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = f.svc.DeleteProject(ctx, f.project.ID, f.owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	list, total, err := f.svc.ListProjects(ctx, f.owner.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestListProjectsPagination(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	desc := "second"
	_, err := f.svc.CreateProject(ctx, f.owner.ID, &CreateProjectInput{Name: "Library", Description: &desc})
	require.NoError(t, err)

	all, total, err := f.svc.ListProjects(ctx, f.owner.ID, &ProjectFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	page, total, err := f.svc.ListProjects(ctx, f.owner.ID, &ProjectFilters{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page, 1)

	none, _, err := f.svc.ListProjects(ctx, f.intruder.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetProjectUsesCache(t *testing.T) {
	client, _ := tester.NewRedis(t)
	projectCache := cache.NewRedisProjectCache(client, time.Minute)
	f := newFixture(t, projectCache)
	ctx := context.Background()
	f.save(t, shopDoc)

	first, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	_, ok, err := projectCache.Get(ctx, f.project.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// rows removed behind the service are still served from the cache
	require.NoError(t, f.db.Where("project_id = ?", f.project.ID).Delete(&models.RelationshipEdge{}).Error)
	cached, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, cached.Relationships, len(first.Relationships))

	// intruders are rejected before the cache is consulted
	_, err = f.svc.GetProject(ctx, f.project.ID, f.intruder.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	f.save(t, `{"classes": [{"id": "z", "name": "Fresh"}], "relationships": []}`)
	_, ok, err = projectCache.Get(ctx, f.project.ID)
	require.NoError(t, err)
	assert.False(t, ok, "save invalidates the cached view")

	fresh, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Classes, 1)
	assert.Equal(t, "Fresh", fresh.Classes[0].Name)
}

// saveAfterClassRead starts onRead once, right after the first class listing,
// and gives it time to reach the database before the read continues.
type saveAfterClassRead struct {
	repository.DiagramStore
	once   *sync.Once
	onRead func()
}

func (s saveAfterClassRead) Transaction(ctx context.Context, fn func(tx repository.DiagramStore) error) error {
	return s.DiagramStore.Transaction(ctx, func(tx repository.DiagramStore) error {
		return fn(saveAfterClassRead{DiagramStore: tx, once: s.once, onRead: s.onRead})
	})
}

func (s saveAfterClassRead) ListClasses(ctx context.Context, projectID uuid.UUID) ([]models.ClassNode, error) {
	classes, err := s.DiagramStore.ListClasses(ctx, projectID)
	s.once.Do(func() {
		go s.onRead()
		time.Sleep(100 * time.Millisecond)
	})
	return classes, err
}

func assertEdgesResolve(t *testing.T, view *diagram.ProjectView) {
	t.Helper()
	ids := map[uuid.UUID]bool{}
	for _, c := range view.Classes {
		ids[c.ID] = true
	}
	for _, r := range view.Relationships {
		assert.True(t, ids[r.SourceClassID], "source %s is a class of the view", r.SourceClassID)
		assert.True(t, ids[r.TargetClassID], "target %s is a class of the view", r.TargetClassID)
	}
}

func TestGetProjectDuringConcurrentSave(t *testing.T) {
	client, _ := tester.NewRedis(t)
	projectCache := cache.NewRedisProjectCache(client, time.Minute)
	f := newFixture(t, projectCache)
	ctx := context.Background()
	f.save(t, shopDoc)

	type result struct {
		at  time.Time
		err error
	}
	saved := make(chan result, 1)
	store := saveAfterClassRead{DiagramStore: f.diagrams, once: &sync.Once{}, onRead: func() {
		doc, raw, err := diagram.Decode(strings.NewReader(shopDoc))
		if err != nil {
			saved <- result{err: err}
			return
		}
		at, err := f.svc.SaveDiagram(ctx, f.project.ID, f.owner.ID, doc, raw)
		saved <- result{at: at, err: err}
	}}
	svc := NewProjectService(repository.NewProjectRepository(f.db), store, projectCache)

	during, err := svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, during.Classes, 2)
	require.Len(t, during.Relationships, 1)
	assertEdgesResolve(t, during)

	res := <-saved
	require.NoError(t, res.err)

	after, err := svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, res.at.Equal(after.UpdatedAt), "view reflects the latest save")
	require.Len(t, after.Relationships, 1)
	assertEdgesResolve(t, after)
}

type stickyCache struct {
	cache.ProjectCache
}

func (stickyCache) Invalidate(context.Context, uuid.UUID) error {
	return errors.New("redis: connection refused")
}

func TestGetProjectIgnoresOutdatedCacheEntry(t *testing.T) {
	client, _ := tester.NewRedis(t)
	f := newFixture(t, stickyCache{cache.NewRedisProjectCache(client, time.Minute)})
	ctx := context.Background()
	f.save(t, shopDoc)

	first, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, first.Classes, 2)

	// the entry survives this save because invalidation fails
	at := f.save(t, `{"classes": [{"id": "z", "name": "Fresh"}], "relationships": []}`)

	fresh, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Classes, 1)
	assert.Equal(t, "Fresh", fresh.Classes[0].Name)
	assert.True(t, at.Equal(fresh.UpdatedAt))

	again, err := f.svc.GetProject(ctx, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.Classes[0].ID, again.Classes[0].ID)
}
