package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	mserrors "github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/types"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var anyInput = expects.AnyInput
var method = expects.RequestMethod
var path = expects.RequestPath

func TestListAttributes(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/api/v1/metadata/attribute/list"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`[{"id":1,"name":"serial","classId":10,"dataType":"string"}]`)),
		),
	)
	defer s.Close()

	c := NewMetadataClient(s.URL())

	attributes, err := c.Attributes(context.Background())

	is.NoErr(err)
	is.Equal(len(attributes), 1)
	is.Equal(attributes[0].Name, "serial")
	is.Equal(attributes[0].ClassID, int64(10))
}

func TestListClassesPropagatesTransportError(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.Code(http.StatusInternalServerError),
			response.Body([]byte("boom")),
		),
	)
	defer s.Close()

	c := NewMetadataClient(s.URL())

	_, err := c.Classes(context.Background())

	is.True(err != nil)
	is.True(errors.Is(err, mserrors.ErrTransport))

	te := &mserrors.TransportError{}
	is.True(errors.As(err, &te))
	is.Equal(te.StatusCode, http.StatusInternalServerError)
	is.Equal(string(te.Body), "boom")
}

func TestTruncateClassTreatsEmptyBodyAsSuccess(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/api/v1/metadata/class/truncate/42"),
		),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	c := NewMetadataClient(s.URL())

	result, err := c.TruncateClass(context.Background(), 42)

	is.NoErr(err)
	is.True(result.Success)
}

func TestTruncateClassReportsServerMessage(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"success":false,"message":"class is protected"}`)),
		),
	)
	defer s.Close()

	c := NewMetadataClient(s.URL())

	result, err := c.TruncateClass(context.Background(), 42)

	is.NoErr(err)
	is.True(!result.Success)
	is.Equal(result.Message, "class is protected")
}

func TestLinkTypesAreFetchedInSequentialBatchesOfFifty(t *testing.T) {
	is := is.New(t)

	batchPaths := []string{}

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.True(strings.HasPrefix(r.URL.Path, "/api/v1/metadata/linktype/batch/class/"))
		batchPaths = append(batchPaths, r.URL.Path)

		ids := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/metadata/linktype/batch/class/"), ",")
		writeLinkTypes(w, len(ids))
	}))
	defer s.Close()

	c := NewMetadataClient(s.URL)

	ids := make([]int64, 120)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	linkTypes, err := c.LinkTypesForClasses(context.Background(), ids)

	is.NoErr(err)
	is.Equal(len(batchPaths), 3)
	is.Equal(len(linkTypes), 120)

	is.True(strings.HasPrefix(batchPaths[0], "/api/v1/metadata/linktype/batch/class/1,"))
	is.True(strings.HasSuffix(batchPaths[2], ",120"))
}

func TestFailingBatchIsSkippedWithoutAbortingSiblings(t *testing.T) {
	is := is.New(t)

	batchCount := 0

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchCount++

		// the second of three batches fails
		if batchCount == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		ids := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/metadata/linktype/batch/class/"), ",")
		writeLinkTypes(w, len(ids))
	}))
	defer s.Close()

	c := NewMetadataClient(s.URL)

	ids := make([]int64, 120)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	linkTypes, err := c.LinkTypesForClasses(context.Background(), ids)

	is.NoErr(err)
	is.Equal(batchCount, 3)
	is.Equal(len(linkTypes), 70) // batch one (50) plus batch three (20)
}

func TestBatchNotFoundDegradesToOneRequestPerClass(t *testing.T) {
	is := is.New(t)

	individualCalls := 0

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/v1/metadata/linktype/batch/class/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		individualCalls++

		switch strings.TrimPrefix(r.URL.Path, "/api/v1/metadata/linktype/class/") {
		case "1":
			writeLinkTypes(w, 2)
		case "2":
			w.WriteHeader(http.StatusInternalServerError)
		case "3":
			writeLinkTypes(w, 1)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer s.Close()

	c := NewMetadataClient(s.URL)

	linkTypes, err := c.LinkTypesForClasses(context.Background(), []int64{1, 2, 3})

	is.NoErr(err)
	is.Equal(individualCalls, 3)
	is.Equal(len(linkTypes), 3) // two from class 1, one from class 3
}

func writeLinkTypes(w http.ResponseWriter, count int) {
	linkTypes := make([]types.LinkType, count)
	for i := range linkTypes {
		linkTypes[i] = types.LinkType{
			ID:                 int64(i + 1),
			Name:               fmt.Sprintf("link-%d", i+1),
			SourceCollectionID: 1,
			TargetCollectionID: 2,
		}
	}

	w.Header().Add("Content-Type", "application/json")
	json.NewEncoder(w).Encode(linkTypes)
}
