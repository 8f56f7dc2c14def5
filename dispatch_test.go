package dsstub

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func call(t testing.TB, eng *Engine, method string, req, resp Message) {
	t.Helper()
	if err := eng.MakeSyncCall(ServiceName, method, req, resp); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

func TestMakeSyncCall(t *testing.T) {
	eng := setup(t)

	var putResp PutResponse
	call(t, eng, "Put", &PutRequest{Entities: []*Entity{
		NewEntity(book("a")).Set("title", String("A")),
		NewEntity(book("b")).Set("title", String("B")),
	}}, &putResp)
	deepEqual(t, len(putResp.Keys), 2)

	var getResp GetResponse
	call(t, eng, "Get", &GetRequest{Keys: []*Key{book("a"), book("zzz")}}, &getResp)
	if getResp.Entities[0] == nil || getResp.Entities[1] != nil {
		t.Fatalf("Get = %v", getResp.Entities)
	}

	var qr QueryResult
	call(t, eng, "RunQuery", &QueryRequest{Query: NewQuery("Book").Order("title", Descending)}, &qr)
	var page QueryResult
	call(t, eng, "Next", &NextRequest{Cursor: qr.Cursor, Count: 10}, &page)
	deepEqual(t, keyNames(page.Results), []string{"b", "a"})

	var count CountResponse
	call(t, eng, "Count", &QueryRequest{Query: NewQuery("Book")}, &count)
	deepEqual(t, count.Count, int64(2))

	var tx Transaction
	call(t, eng, "BeginTransaction", &VoidMessage{}, &tx)
	call(t, eng, "Delete", &DeleteRequest{Keys: []*Key{book("a")}, Transaction: &tx}, &VoidMessage{})
	call(t, eng, "Commit", &tx, &VoidMessage{})

	var ids AllocateIdsResponse
	call(t, eng, "AllocateIds", &AllocateIdsRequest{Key: book("a"), Size: 3}, &ids)
	deepEqual(t, ids.End-ids.Start, int64(3))

	var schema SchemaResponse
	call(t, eng, "GetSchema", &AppRequest{}, &schema)
	deepEqual(t, len(schema.Kinds), 1)

	ci := bookIndex(IndexProperty{"a", Ascending}, IndexProperty{"b", Ascending})
	var idResp IndexIDResponse
	call(t, eng, "CreateIndex", ci, &idResp)
	ci.State = IndexReadWrite
	call(t, eng, "UpdateIndex", ci, &VoidMessage{})
	var indices IndicesResponse
	call(t, eng, "GetIndices", &AppRequest{}, &indices)
	if len(indices.Indices) != 1 || indices.Indices[0].ID != idResp.ID || indices.Indices[0].State != IndexReadWrite {
		t.Fatalf("GetIndices = %+v", indices.Indices)
	}
	call(t, eng, "DeleteIndex", ci, &VoidMessage{})

	call(t, eng, "BeginTransaction", &VoidMessage{}, &tx)
	call(t, eng, "Rollback", &tx, &VoidMessage{})
}

func TestMakeSyncCall_errors(t *testing.T) {
	eng := setup(t)

	err := eng.MakeSyncCall(ServiceName, "Frobnicate", &VoidMessage{}, &VoidMessage{})
	wantCode(t, err, CodeBadRequest)

	err = eng.MakeSyncCall(ServiceName, "Next", &NextRequest{Cursor: 999}, &QueryResult{})
	wantCode(t, err, CodeBadRequest)
}

func TestMakeSyncCall_panicsOnContractViolations(t *testing.T) {
	eng := setup(t)
	tests := []struct {
		name    string
		service string
		method  string
		req     Message
		resp    Message
	}{
		{"wrong service", "memcache", "Get", &GetRequest{}, &GetResponse{}},
		{"uninitialized request", ServiceName, "Get", &GetRequest{Keys: []*Key{nil}}, &GetResponse{}},
		{"wrong request type", ServiceName, "Get", &PutRequest{}, &GetResponse{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("MakeSyncCall did not panic")
				}
			}()
			eng.MakeSyncCall(tt.service, tt.method, tt.req, tt.resp)
		})
	}
}

func TestMakeSyncCall_metrics(t *testing.T) {
	eng := setup(t)
	okBefore := testutil.ToFloat64(promCalls.WithLabelValues("Get", "OK"))
	badBefore := testutil.ToFloat64(promCalls.WithLabelValues("Next", "BAD_REQUEST"))

	call(t, eng, "Get", &GetRequest{Keys: []*Key{book("a")}}, &GetResponse{})
	call(t, eng, "Get", &GetRequest{Keys: []*Key{book("a")}}, &GetResponse{})
	_ = eng.MakeSyncCall(ServiceName, "Next", &NextRequest{Cursor: 12345}, &QueryResult{})

	deepEqual(t, testutil.ToFloat64(promCalls.WithLabelValues("Get", "OK"))-okBefore, 2.0)
	deepEqual(t, testutil.ToFloat64(promCalls.WithLabelValues("Next", "BAD_REQUEST"))-badBefore, 1.0)

	putAll(t, eng, NewEntity(book("a")), NewEntity(book("b")))
	deepEqual(t, testutil.ToFloat64(promEntities.WithLabelValues(testApp)), 2.0)

	reg := prometheus.NewPedanticRegistry()
	for _, c := range PromCollectors {
		reg.MustRegister(c)
	}
	if n := testutil.CollectAndCount(promCallDuration, "dsstub_rpc_duration_seconds"); n == 0 {
		t.Error("no call duration series collected")
	}
	if _, err := reg.Gather(); err != nil {
		t.Errorf("Gather: %v", err)
	}
}
