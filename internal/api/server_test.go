package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/walkingpad-tracker/internal/storage"
)

var _ = Describe("Server", func() {
	var (
		store       *mockStore
		analyzer    *mockAnalyzer
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		store = newMockStore()
		analyzer = &mockAnalyzer{answer: `{"time": "12:34", "speed": "5.6", "distance": "1.1"}`}
		clock := &mockTimeSource{now: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)}
		server = NewServerWithMux(NewServiceWithDeps(store, store, analyzer, clock), http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		anyPath := regexp.MustCompile(".*")
		for _, method := range []string{"GET", "POST", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, anyPath, server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	decodeProblem := func(resp *http.Response) problem {
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("application/problem+json"))
		var p problem
		Expect(json.NewDecoder(resp.Body).Decode(&p)).To(Succeed())
		return p
	}

	Describe("handleIndex", func() {
		It("should return HTML containing Walking Pad", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Walking Pad"))
		})

		It("should not serve unknown paths", func() {
			resp, err := http.Get(ghttpServer.URL() + "/nope")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleHealthcheck", func() {
		It("should return OK", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthcheck")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("OK"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/api/upload", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("handleUpload", func() {
		When("an image is posted", func() {
			It("should return the filename and URL", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/upload", "image/png", bytes.NewReader([]byte("png bytes")))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var result UploadResult
				Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
				Expect(result.Filename).To(Equal("capture_20240115_093000.png"))
				Expect(result.URL).To(Equal("http://blobs.test/captures/capture_20240115_093000.png"))
			})
		})

		When("the body is empty", func() {
			It("should return a 400 problem", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/upload", "image/png", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeProblem(resp).Status).To(Equal(http.StatusBadRequest))
			})
		})

		When("the store fails", func() {
			BeforeEach(func() {
				store.putErr = errors.New("bucket gone")
			})

			It("should return a 500 problem with the detail", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/upload", "image/png", bytes.NewReader([]byte("x")))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				p := decodeProblem(resp)
				Expect(p.Title).To(Equal("Internal Server Error"))
				Expect(p.Detail).To(ContainSubstring("bucket gone"))
			})
		})
	})

	Describe("handleAnalyze", func() {
		const captureURL = "http%3A%2F%2Fblobs.test%2Fcaptures%2Fa.png"

		BeforeEach(func() {
			_, err := store.Put(context.Background(), "a.png", []byte("png"), "image/png")
			Expect(err).NotTo(HaveOccurred())
		})

		When("imageUrl is given", func() {
			It("should return the raw model text as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze?imageUrl=" + captureURL)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				body, _ := io.ReadAll(resp.Body)
				Expect(string(body)).To(Equal(`{"time": "12:34", "speed": "5.6", "distance": "1.1"}`))
				Expect(analyzer.lastURL).To(Equal("http://blobs.test/captures/a.png"))
			})
		})

		When("the model wraps its answer in prose", func() {
			BeforeEach(func() {
				analyzer.answer = "Here you go: {\"speed\": \"3.0\"}"
			})

			It("should pass it through untouched", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze?imageUrl=" + captureURL)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				Expect(string(body)).To(Equal("Here you go: {\"speed\": \"3.0\"}"))
			})
		})

		When("imageUrl is missing", func() {
			It("should return a 400 problem", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeProblem(resp).Detail).To(Equal("Image URL is required"))
			})
		})

		When("imageUrl points somewhere else", func() {
			It("should return a 400 problem without calling the model", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze?imageUrl=" +
					url.QueryEscape("http://169.254.169.254/latest/meta-data/iam/"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeProblem(resp).Detail).To(Equal("Image URL is not a stored capture"))
				Expect(analyzer.calls).To(BeZero())
			})
		})

		When("the capture does not exist", func() {
			It("should return a 404 problem", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze?imageUrl=" +
					url.QueryEscape("http://blobs.test/captures/missing.png"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				Expect(decodeProblem(resp).Detail).To(Equal("Capture not found"))
			})
		})

		When("the model fails", func() {
			BeforeEach(func() {
				analyzer.err = errors.New("no response from AI model")
			})

			It("should return a 500 problem", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/analyze?imageUrl=" + captureURL)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decodeProblem(resp).Detail).To(ContainSubstring("no response from AI model"))
			})
		})
	})

	Describe("handleGetCapture", func() {
		When("the capture exists", func() {
			BeforeEach(func() {
				_, err := store.Put(context.Background(), "capture_1.png", []byte("png"), "image/png")
				Expect(err).NotTo(HaveOccurred())
			})

			It("should serve it as PNG", func() {
				resp, err := http.Get(ghttpServer.URL() + "/captures/capture_1.png")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
				body, _ := io.ReadAll(resp.Body)
				Expect(string(body)).To(Equal("png"))
			})
		})

		When("the capture is missing", func() {
			It("should return 404", func() {
				resp, err := http.Get(ghttpServer.URL() + "/captures/missing.png")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the store rejects the name", func() {
			BeforeEach(func() {
				store.getErr = storage.ErrInvalidName
			})

			It("should return 400", func() {
				resp, err := http.Get(ghttpServer.URL() + "/captures/bad.png")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("Run", func() {
		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- server.Run(ctx, "127.0.0.1:0")
			}()
			cancel()
			Eventually(done, 6*time.Second).Should(Receive(BeNil()))
		})
	})
})
