package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/shaiso/Armada/internal/domain"
)

// AWSAdapter создаёт EC2-инстансы через aws-sdk-go-v2.
//
// Идемпотентность делегируется провайдеру: idempotency key пробрасывается
// как ClientToken RunInstances, и AWS гарантирует, что повторный вызов
// с тем же токеном вернёт уже созданный инстанс.
type AWSAdapter struct {
	cfg aws.Config

	mu      sync.Mutex
	clients map[string]*ec2.Client // регион → клиент
}

// NewAWSAdapter создаёт адаптер поверх базовой AWS-конфигурации.
// Клиенты создаются лениво, по одному на регион.
func NewAWSAdapter(cfg aws.Config) *AWSAdapter {
	return &AWSAdapter{
		cfg:     cfg,
		clients: make(map[string]*ec2.Client),
	}
}

// CreateInstance запускает один EC2-инстанс.
func (a *AWSAdapter) CreateInstance(ctx context.Context, params domain.InstanceParams, idempotencyKey string) (string, error) {
	client := a.client(params.Region)

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(params.Image),
		InstanceType: ec2types.InstanceType(params.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		ClientToken:  aws.String(idempotencyKey),
	}

	if params.Name != "" {
		input.TagSpecifications = []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{{
				Key:   aws.String("Name"),
				Value: aws.String(params.Name),
			}},
		}}
	}

	output, err := client.RunInstances(ctx, input)
	if err != nil {
		return "", classifyAWSError(err)
	}

	if len(output.Instances) == 0 || output.Instances[0].InstanceId == nil {
		return "", Transientf("ec2 run-instances returned no instances")
	}

	return *output.Instances[0].InstanceId, nil
}

// client возвращает EC2-клиент для региона.
func (a *AWSAdapter) client(region string) *ec2.Client {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[region]; ok {
		return c
	}

	c := ec2.NewFromConfig(a.cfg, func(o *ec2.Options) {
		o.Region = region
	})
	a.clients[region] = c
	return c
}

// classifyAWSError маппит ошибки EC2 API в transient/permanent.
// Это единственное место, знающее коды ошибок AWS.
func classifyAWSError(err error) error {
	// Таймаут вызова — transient, решается повтором.
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// Сетевые и прочие не-API ошибки считаем transient.
		return &TransientError{Err: err}
	}

	code := apiErr.ErrorCode()
	switch code {
	case "RequestLimitExceeded",
		"Throttling",
		"ThrottlingException",
		"InsufficientInstanceCapacity",
		"InternalError",
		"Unavailable",
		"ServiceUnavailable":
		return &TransientError{Err: err}
	}

	// Ошибки параметров и лимитов аккаунта повтором не лечатся.
	if strings.HasPrefix(code, "InvalidParameter") ||
		strings.HasPrefix(code, "InvalidAMIID") ||
		strings.HasPrefix(code, "InvalidSubnetID") ||
		code == "UnauthorizedOperation" ||
		code == "OptInRequired" ||
		code == "InstanceLimitExceeded" ||
		code == "VcpuLimitExceeded" {
		return &PermanentError{Err: err}
	}

	// Неизвестный код: fault указывает сторону отказа.
	if apiErr.ErrorFault() == smithy.FaultServer {
		return &TransientError{Err: err}
	}

	return &PermanentError{Err: fmt.Errorf("ec2 %s: %w", code, err)}
}
