package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amberdev/bangumi-harvest/internal/bangumiapi"
	"github.com/amberdev/bangumi-harvest/internal/extract"
	"github.com/amberdev/bangumi-harvest/internal/idcache"
)

// fakeAPI serves scripted subjects, person lists, and person details, and
// counts every call.
type fakeAPI struct {
	subjects []bangumiapi.Subject
	persons  map[int][]bangumiapi.Person
	details  map[int]*bangumiapi.PersonDetail

	personsErr map[int]error
	detailErr  map[int]error

	pageCalls   int
	personCalls map[int]int
	detailCalls map[int]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		persons:     map[int][]bangumiapi.Person{},
		details:     map[int]*bangumiapi.PersonDetail{},
		personsErr:  map[int]error{},
		detailErr:   map[int]error{},
		personCalls: map[int]int{},
		detailCalls: map[int]int{},
	}
}

func (f *fakeAPI) GetSubjectPage(_ context.Context, limit, offset int) (*bangumiapi.SubjectPage, error) {
	f.pageCalls++
	end := offset + limit
	if end > len(f.subjects) {
		end = len(f.subjects)
	}
	var data []bangumiapi.Subject
	if offset < len(f.subjects) {
		data = f.subjects[offset:end]
	}
	return &bangumiapi.SubjectPage{
		Data:   data,
		Total:  len(f.subjects),
		Limit:  limit,
		Offset: offset,
	}, nil
}

func (f *fakeAPI) GetSubjectPersons(_ context.Context, subjectID int) ([]bangumiapi.Person, error) {
	f.personCalls[subjectID]++
	if err := f.personsErr[subjectID]; err != nil {
		return nil, err
	}
	return f.persons[subjectID], nil
}

func (f *fakeAPI) GetPersonDetail(_ context.Context, personID int) (*bangumiapi.PersonDetail, error) {
	f.detailCalls[personID]++
	if err := f.detailErr[personID]; err != nil {
		return nil, err
	}
	return f.details[personID], nil
}

type fixture struct {
	api        *fakeAPI
	subjects   *idcache.Cache
	authors    *idcache.Cache
	cfg        Config
	authorFile string
	mangaFile  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	authorFile := filepath.Join(dir, "manga_artists.json")
	mangaFile := filepath.Join(dir, "manga_info.json")
	return &fixture{
		api:        newFakeAPI(),
		subjects:   idcache.New(filepath.Join(dir, "manga_info_cache.json")),
		authors:    idcache.New(filepath.Join(dir, "manga_artists_cache.json")),
		cfg: Config{
			BatchSize:  30,
			AuthorFile: authorFile,
			MangaFile:  mangaFile,
		},
		authorFile: authorFile,
		mangaFile:  mangaFile,
	}
}

func (fx *fixture) run(t *testing.T) ([]extract.PersonRecord, error) {
	t.Helper()
	h := New(fx.api, fx.subjects, fx.authors, fx.cfg)
	h.sleep = func(time.Duration) {}
	return h.Run(context.Background())
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func subject(id int, nsfw bool) bangumiapi.Subject {
	return bangumiapi.Subject{ID: id, Name: "subject", NSFW: nsfw}
}

func authorPerson(id int) bangumiapi.Person {
	return bangumiapi.Person{ID: id, Name: "author", Relation: "作者"}
}

func detailFor(id int) *bangumiapi.PersonDetail {
	return &bangumiapi.PersonDetail{ID: id, Name: "author"}
}

func TestEndToEndScenario(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true), subject(2, true)}
	fx.api.persons[2] = []bangumiapi.Person{authorPerson(20)}
	fx.api.details[20] = detailFor(20)

	// Subject 1 already processed by a previous run.
	fx.subjects.Add(1)

	authors, err := fx.run(t)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, 20, authors[0].ID)

	// Cached subject triggered no dependent fetches.
	assert.Equal(t, 0, fx.api.personCalls[1])
	assert.Equal(t, 1, fx.api.personCalls[2])
	assert.Equal(t, 1, fx.api.detailCalls[20])

	// Both caches gained exactly one new ID.
	assert.Equal(t, 2, fx.subjects.Len())
	assert.True(t, fx.subjects.Contains(2))
	assert.Equal(t, 1, fx.authors.Len())
	assert.True(t, fx.authors.Contains(20))

	var mangas []extract.MangaRecord
	require.NoError(t, json.Unmarshal(readFile(t, fx.mangaFile), &mangas))
	require.Len(t, mangas, 1)
	assert.Equal(t, 2, mangas[0].ID)
	assert.Equal(t, []int{20}, mangas[0].AuthorIDs)
	assert.Equal(t, []string{"author"}, mangas[0].AuthorNames)

	var persons []extract.PersonRecord
	require.NoError(t, json.Unmarshal(readFile(t, fx.authorFile), &persons))
	require.Len(t, persons, 1)
}

func TestIdempotentReRun(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	fx.api.details[10] = detailFor(10)

	_, err := fx.run(t)
	require.NoError(t, err)

	authorBytes := readFile(t, fx.authorFile)
	mangaBytes := readFile(t, fx.mangaFile)

	// Second pass over the same remote data: nothing new, files untouched.
	authors, err := fx.run(t)
	require.NoError(t, err)
	assert.Len(t, authors, 1) // re-seeded from disk, nothing appended

	assert.Equal(t, authorBytes, readFile(t, fx.authorFile))
	assert.Equal(t, mangaBytes, readFile(t, fx.mangaFile))
	assert.Equal(t, 1, fx.api.personCalls[1])
	assert.Equal(t, 1, fx.api.detailCalls[10])
}

func TestFreshHarvesterResumesFromDisk(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	fx.api.details[10] = detailFor(10)

	_, err := fx.run(t)
	require.NoError(t, err)
	authorBytes := readFile(t, fx.authorFile)
	mangaBytes := readFile(t, fx.mangaFile)

	// Simulate a restart: fresh caches and harvester over the same files.
	fx2 := newFixture(t)
	fx2.api = fx.api
	fx2.subjects = idcache.New(cachePath(fx.subjects))
	fx2.authors = idcache.New(cachePath(fx.authors))
	fx2.cfg = fx.cfg

	authors, err := fx2.run(t)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
	assert.Equal(t, authorBytes, readFile(t, fx.authorFile))
	assert.Equal(t, mangaBytes, readFile(t, fx.mangaFile))
}

func TestResumeAfterCrashBetweenAuthorAndSubjectFlush(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	fx.api.details[10] = detailFor(10)

	// Interrupted earlier run: author flushed and cached, but the subject
	// never made it into the subject cache or the manga file.
	fx.authors.Add(10)
	require.NoError(t, writeArray(fx.authorFile, []extract.PersonRecord{extract.NewPersonRecord(detailFor(10))}))

	authors, err := fx.run(t)
	require.NoError(t, err)

	// No duplicate author, but the manga record was still produced.
	assert.Len(t, authors, 1)
	assert.Equal(t, 0, fx.api.detailCalls[10])

	var mangas []extract.MangaRecord
	require.NoError(t, json.Unmarshal(readFile(t, fx.mangaFile), &mangas))
	require.Len(t, mangas, 1)
	assert.Equal(t, []int{10}, mangas[0].AuthorIDs)
	assert.True(t, fx.subjects.Contains(1))
}

func TestNSFWFilterIsNonSticky(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, false)}

	for i := 0; i < 3; i++ {
		authors, err := fx.run(t)
		require.NoError(t, err)
		assert.Empty(t, authors)
		assert.False(t, fx.subjects.Contains(1))
		assert.Equal(t, 0, fx.api.personCalls[1])
		assert.NoFileExists(t, fx.mangaFile)
	}

	// The subject flips; the next run picks it up.
	fx.api.subjects[0].NSFW = true
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	fx.api.details[10] = detailFor(10)

	authors, err := fx.run(t)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
	assert.True(t, fx.subjects.Contains(1))
}

func TestPersonsFailureLeavesSubjectUncached(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.personsErr[1] = errors.New("boom")

	authors, err := fx.run(t)
	require.NoError(t, err)
	assert.Empty(t, authors)
	assert.False(t, fx.subjects.Contains(1))
}

func TestEmptyPersonsLeavesSubjectUncached(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = nil

	_, err := fx.run(t)
	require.NoError(t, err)
	assert.False(t, fx.subjects.Contains(1))
}

func TestNoAuthorsAfterFilterLeavesSubjectUncached(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{{ID: 10, Relation: "编辑", Careers: []string{"other"}}}

	_, err := fx.run(t)
	require.NoError(t, err)
	assert.False(t, fx.subjects.Contains(1))
	assert.Equal(t, 0, fx.api.detailCalls[10])
}

func TestAuthorDetailFailureSkipsAuthorButSavesManga(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10), authorPerson(11)}
	fx.api.detailErr[10] = errors.New("boom")
	fx.api.details[11] = detailFor(11)

	authors, err := fx.run(t)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, 11, authors[0].ID)

	// Failed author stays uncached for a future run, but the manga record
	// still lists both authors and the subject is done.
	assert.False(t, fx.authors.Contains(10))
	assert.True(t, fx.authors.Contains(11))
	assert.True(t, fx.subjects.Contains(1))

	var mangas []extract.MangaRecord
	require.NoError(t, json.Unmarshal(readFile(t, fx.mangaFile), &mangas))
	require.Len(t, mangas, 1)
	assert.Equal(t, []int{10, 11}, mangas[0].AuthorIDs)
}

func TestNilDetailIsFatal(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true), subject(2, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	// details[10] left nil: success with no payload.

	authors, err := fx.run(t)
	require.Error(t, err)
	assert.Empty(t, authors)

	// The run halted before subject 2.
	assert.Equal(t, 0, fx.api.personCalls[2])
	assert.False(t, fx.subjects.Contains(1))
}

func TestMalformedPriorOutputResumesEmpty(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.WriteFile(fx.authorFile, []byte("{broken"), 0o644))
	fx.api.subjects = []bangumiapi.Subject{subject(1, true)}
	fx.api.persons[1] = []bangumiapi.Person{authorPerson(10)}
	fx.api.details[10] = detailFor(10)

	authors, err := fx.run(t)
	require.NoError(t, err)
	assert.Len(t, authors, 1)

	var persons []extract.PersonRecord
	require.NoError(t, json.Unmarshal(readFile(t, fx.authorFile), &persons))
	assert.Len(t, persons, 1)
}

func TestStartOffsetSkipsPrefix(t *testing.T) {
	fx := newFixture(t)
	fx.api.subjects = []bangumiapi.Subject{subject(1, true), subject(2, true), subject(3, true)}
	fx.api.persons[3] = []bangumiapi.Person{authorPerson(30)}
	fx.api.details[30] = detailFor(30)
	fx.cfg.BatchSize = 2
	fx.cfg.StartOffset = 2

	authors, err := fx.run(t)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, 0, fx.api.personCalls[1])
	assert.Equal(t, 0, fx.api.personCalls[2])
	assert.Equal(t, 1, fx.api.personCalls[3])
}

// pagingAPI fails one page and serves the rest.
type pagingAPI struct {
	*fakeAPI
	failOffset int
}

func (p *pagingAPI) GetSubjectPage(ctx context.Context, limit, offset int) (*bangumiapi.SubjectPage, error) {
	if limit > 1 && offset == p.failOffset {
		p.pageCalls++
		return nil, errors.New("bad page")
	}
	return p.fakeAPI.GetSubjectPage(ctx, limit, offset)
}

func TestPageFailureAdvancesCursor(t *testing.T) {
	fx := newFixture(t)
	base := fx.api
	base.subjects = []bangumiapi.Subject{subject(1, true), subject(2, true), subject(3, true), subject(4, true)}
	base.persons[3] = []bangumiapi.Person{authorPerson(30)}
	base.details[30] = detailFor(30)
	base.persons[4] = []bangumiapi.Person{authorPerson(40)}
	base.details[40] = detailFor(40)

	fx.cfg.BatchSize = 2
	h := New(&pagingAPI{fakeAPI: base, failOffset: 0}, fx.subjects, fx.authors, fx.cfg)
	h.sleep = func(time.Duration) {}

	authors, err := h.Run(context.Background())
	require.NoError(t, err)

	// First page lost, second still processed.
	require.Len(t, authors, 2)
	assert.Equal(t, 0, base.personCalls[1])
	assert.Equal(t, 0, base.personCalls[2])
	assert.Equal(t, 1, base.personCalls[3])
	assert.Equal(t, 1, base.personCalls[4])
}

// cachePath digs the backing path out of a cache for restart simulation.
func cachePath(c *idcache.Cache) string {
	return c.Path()
}
