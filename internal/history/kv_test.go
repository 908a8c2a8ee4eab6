package history

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("KV backends", func() {
	backends := []struct {
		name string
		open func(path string) (KV, error)
	}{
		{"BoltKV", func(path string) (KV, error) { return NewBoltKV(path) }},
		{"SQLiteKV", func(path string) (KV, error) { return NewSQLiteKV(path) }},
	}

	for _, backend := range backends {
		open := backend.open
		Describe(backend.name, func() {
			var kv KV

			BeforeEach(func() {
				var err error
				kv, err = open(filepath.Join(GinkgoT().TempDir(), "kv.db"))
				Expect(err).NotTo(HaveOccurred())
			})

			AfterEach(func() {
				kv.Close()
			})

			It("should return nil for a missing key", func() {
				value, err := kv.Get("missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(value).To(BeNil())
			})

			It("should return a stored value", func() {
				Expect(kv.Put("k", []byte("v1"))).To(Succeed())
				value, err := kv.Get("k")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(value)).To(Equal("v1"))
			})

			It("should overwrite an existing value", func() {
				Expect(kv.Put("k", []byte("v1"))).To(Succeed())
				Expect(kv.Put("k", []byte("v2"))).To(Succeed())
				value, err := kv.Get("k")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(value)).To(Equal("v2"))
			})

			It("should delete a key", func() {
				Expect(kv.Put("k", []byte("v1"))).To(Succeed())
				Expect(kv.Delete("k")).To(Succeed())
				value, err := kv.Get("k")
				Expect(err).NotTo(HaveOccurred())
				Expect(value).To(BeNil())
			})

			It("should not fail deleting a missing key", func() {
				Expect(kv.Delete("missing")).To(Succeed())
			})
		})
	}
})
