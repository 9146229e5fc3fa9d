package restyutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			w.Write([]byte("echo:" + string(body)))
			return
		}
		w.Write([]byte("<html>order</html>"))
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	InstrumentClient(client, out)

	_, err := client.R().Get(srv.URL + "/order-detail?id=1")
	require.NoError(t, err)
	_, err = client.R().
		SetHeader("Content-Type", "text/plain").
		SetBody("orderID=112-1").
		Post(srv.URL + "/lookup")
	require.NoError(t, err)

	require.Len(t, out.messages, 2)

	get := out.messages["0001.txt"]
	require.Contains(t, get, "---- REQUEST ----\n\nGET "+srv.URL+"/order-detail?id=1")
	require.Contains(t, get, "<NO BODY AVAILABLE>")
	require.Contains(t, get, "---- RESPONSE ----\n\n200")
	require.Contains(t, get, "X-Test: 1")
	require.True(t, strings.HasSuffix(get, "<html>order</html>"), get)

	post := out.messages["0002.txt"]
	require.Contains(t, post, "POST "+srv.URL+"/lookup")
	require.Contains(t, post, "Content-Type: text/plain")
	require.Contains(t, post, "\n\norderID=112-1\n\n---- RESPONSE ----")
	require.NotContains(t, post, "<NO BODY AVAILABLE>")
	require.True(t, strings.HasSuffix(post, "echo:orderID=112-1"), post)
}

func TestFormatRequestBody(t *testing.T) {
	require.Equal(t, "<NO BODY AVAILABLE>", formatRequestBody(nil))

	req, err := http.NewRequest(http.MethodGet, "http://localhost/order", nil)
	require.NoError(t, err)
	require.Equal(t, "<NO BODY AVAILABLE>", formatRequestBody(req))

	// GetBody is present but yields no body
	req.GetBody = func() (io.ReadCloser, error) { return nil, nil }
	require.Equal(t, "<NO BODY AVAILABLE>", formatRequestBody(req))

	req, err = http.NewRequest(http.MethodPost, "http://localhost/order", strings.NewReader("a=1"))
	require.NoError(t, err)
	require.Equal(t, "a=1", formatRequestBody(req))
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, nil)
}
