package bangumiapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// GetSubjectPage fetches one page of the comic collection, sorted by date
// ascending.
func (c *Client) GetSubjectPage(ctx context.Context, limit, offset int) (*SubjectPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("type", strconv.Itoa(SubjectTypeBook))
	params.Set("cat", strconv.Itoa(CategoryComic))
	params.Set("sort", SortByDate)

	var page SubjectPage
	if err := c.doJSON(ctx, http.MethodGet, "/v0/subjects", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSubject fetches a single subject by ID.
func (c *Client) GetSubject(ctx context.Context, id int) (*Subject, error) {
	var s Subject
	if err := c.doJSON(ctx, http.MethodGet, "/v0/subjects/"+strconv.Itoa(id), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubjectPersons lists all people associated with a subject.
func (c *Client) GetSubjectPersons(ctx context.Context, subjectID int) ([]Person, error) {
	var persons []Person
	if err := c.doJSON(ctx, http.MethodGet, "/v0/subjects/"+strconv.Itoa(subjectID)+"/persons", nil, nil, &persons); err != nil {
		return nil, err
	}
	return persons, nil
}

// GetPersonDetail fetches the full record for one person.
func (c *Client) GetPersonDetail(ctx context.Context, personID int) (*PersonDetail, error) {
	var d PersonDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v0/persons/"+strconv.Itoa(personID), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
