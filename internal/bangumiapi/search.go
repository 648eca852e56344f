package bangumiapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func pageParams(limit, offset int) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return params
}

// SearchSubjects searches the subject catalog by keyword and filter.
func (c *Client) SearchSubjects(ctx context.Context, req SubjectSearchRequest, limit, offset int) (*SubjectSearchResponse, error) {
	var out SubjectSearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v0/search/subjects", pageParams(limit, offset), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchPersons searches person records by keyword and filter.
func (c *Client) SearchPersons(ctx context.Context, req PersonSearchRequest, limit, offset int) (*PersonSearchResponse, error) {
	var out PersonSearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v0/search/persons", pageParams(limit, offset), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
