// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnist-mlp/internal/model"
	"github.com/born-ml/mnist-mlp/internal/predict"
)

type fakeClassifier struct {
	got   []float32
	panic bool
}

func (f *fakeClassifier) Predict(pixels []float32) (predict.Prediction, error) {
	if f.panic {
		panic("shape mismatch")
	}
	f.got = pixels
	return predict.Prediction{Label: 7, Confidence: 0.9, Probabilities: []float64{0.1, 0.9}}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestServer(c Classifier) *Server {
	info := ModelInfo{
		Architecture: "MLP",
		Sizes:        model.DefaultSizes,
		Parameters:   109386,
		Meta:         model.Meta{Mean: 0.5, Std: 0.5},
	}
	return New(c, info, WithLogger(func(string, ...any) {}))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeClassifier{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestModelInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeClassifier{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/model", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, []int{784, 128, 64, 10}, info.Sizes)
	assert.Equal(t, 109386, info.Parameters)
}

func TestPredictRawBody(t *testing.T) {
	c := &fakeClassifier{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader(pngBytes(t, 28, 28)))
	req.Header.Set("Content-Type", "image/png")
	newTestServer(c).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pred predict.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	assert.Equal(t, 7, pred.Label)

	// Black pixels normalized with mean=std=0.5.
	require.Len(t, c.got, 784)
	assert.InDelta(t, -1.0, c.got[0], 1e-6)
}

func TestPredictMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "digit.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(t, 56, 56))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	c := &fakeClassifier{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict?invert=true", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	newTestServer(c).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, c.got, 784)
	assert.InDelta(t, 1.0, c.got[0], 0.02)
}

func TestPredictBadInput(t *testing.T) {
	s := newTestServer(&fakeClassifier{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte("nope"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictRecoversPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader(pngBytes(t, 28, 28)))
	newTestServer(&fakeClassifier{panic: true}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "shape mismatch")
}

func TestPredictWithModel(t *testing.T) {
	backend := cpu.New()
	m, err := model.New(model.DefaultSizes, backend)
	require.NoError(t, err)

	info := ModelInfo{Architecture: "MLP", Sizes: m.Sizes(), Parameters: m.NumParameters(), Meta: model.Meta{Mean: 0.5, Std: 0.5}}
	s := New(predict.NewPredictor(m, backend), info, WithLogger(t.Logf))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader(pngBytes(t, 28, 28))))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pred predict.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pred))
	assert.Len(t, pred.Probabilities, 10)
	assert.GreaterOrEqual(t, pred.Label, 0)
	assert.Less(t, pred.Label, 10)
}
