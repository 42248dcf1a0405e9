package cloud

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Armada/internal/domain"
	"github.com/aws/smithy-go"
)

// --- Error classification tests ---

func TestIsTransient(t *testing.T) {
	err := Transientf("throttled")
	if !IsTransient(err) {
		t.Error("Transientf should be transient")
	}
	if IsPermanent(err) {
		t.Error("Transientf should not be permanent")
	}
}

func TestIsPermanent_Wrapped(t *testing.T) {
	// Классификация должна переживать обёртывание через %w
	err := Permanentf("invalid image")
	wrapped := errors.Join(errors.New("attempt 2"), err)

	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent error should stay permanent")
	}
}

func TestClassifyAWSError_TransientCodes(t *testing.T) {
	codes := []string{
		"RequestLimitExceeded",
		"Throttling",
		"InsufficientInstanceCapacity",
		"ServiceUnavailable",
	}

	for _, code := range codes {
		err := classifyAWSError(&smithy.GenericAPIError{Code: code, Message: "x"})
		if !IsTransient(err) {
			t.Errorf("code %s should classify as transient, got %v", code, err)
		}
	}
}

func TestClassifyAWSError_PermanentCodes(t *testing.T) {
	codes := []string{
		"InvalidParameterValue",
		"InvalidAMIID.NotFound",
		"UnauthorizedOperation",
		"InstanceLimitExceeded",
	}

	for _, code := range codes {
		err := classifyAWSError(&smithy.GenericAPIError{Code: code, Message: "x"})
		if !IsPermanent(err) {
			t.Errorf("code %s should classify as permanent, got %v", code, err)
		}
	}
}

func TestClassifyAWSError_NetworkError(t *testing.T) {
	err := classifyAWSError(errors.New("dial tcp: connection refused"))
	if !IsTransient(err) {
		t.Error("non-API errors should classify as transient")
	}
}

func TestClassifyAWSError_Timeout(t *testing.T) {
	err := classifyAWSError(context.DeadlineExceeded)
	if !IsTransient(err) {
		t.Error("deadline exceeded should classify as transient")
	}
}

// --- Registry tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	fake := NewFakeAdapter()

	r.Register("fake", fake)

	adapter, err := r.Get("fake")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter != fake {
		t.Error("should return registered adapter")
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("gcp")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

// --- FakeAdapter tests ---

func TestFakeAdapter_IdempotentByKey(t *testing.T) {
	f := NewFakeAdapter()
	params := domain.InstanceParams{Cloud: "fake", Region: "local", InstanceType: "t", Image: "img"}

	// Два вызова с одним ключом — один инстанс (crash-and-redeliver)
	id1, err := f.CreateInstance(context.Background(), params, "job/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := f.CreateInstance(context.Background(), params, "job/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id1 != id2 {
		t.Errorf("same key should yield same instance: %s vs %s", id1, id2)
	}
	if f.InstanceCount() != 1 {
		t.Errorf("expected 1 instance, got %d", f.InstanceCount())
	}

	// Другой ключ — другой инстанс
	id3, _ := f.CreateInstance(context.Background(), params, "job/1")
	if id3 == id1 {
		t.Error("different keys should yield different instances")
	}
}

func TestFakeAdapter_ScriptedFailures(t *testing.T) {
	f := NewFakeAdapter()
	params := domain.InstanceParams{Cloud: "fake", Region: "local", InstanceType: "t", Image: "img"}

	f.Fail("job/0", Transientf("capacity"), Transientf("capacity"))

	for i := 0; i < 2; i++ {
		if _, err := f.CreateInstance(context.Background(), params, "job/0"); !IsTransient(err) {
			t.Fatalf("call %d: expected transient error, got %v", i, err)
		}
	}

	// Очередь ошибок пуста — успех
	id, err := f.CreateInstance(context.Background(), params, "job/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected instance id")
	}
}
