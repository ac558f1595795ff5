package forward

import (
	"encoding/json"
	"errors"
	"testing"

	"devguru-client/internal/realtime"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendKeysByChannel(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig(""))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "publications" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "question_7" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	f := New(producer, "publications", nil)
	require.NoError(t, f.Send("question_7", []byte(`{"rating":5}`)))
	require.NoError(t, f.Close())
}

func TestSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig(""))
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	f := New(producer, "publications", nil)
	err := f.Send("question_7", []byte(`{}`))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, f.Close())
}

func TestListenerForwardsPublicationsOnly(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewConfig(""))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"text":"hi"}` {
			return errors.New("unexpected value " + string(val))
		}
		return nil
	})

	f := New(producer, "publications", nil)
	l := f.Listener()
	l(realtime.Event{Type: realtime.EventSubscribed, Channel: "chat"})
	l(realtime.Event{Type: realtime.EventPublication, Channel: "chat", Data: json.RawMessage(`{"text":"hi"}`)})
	l(realtime.Event{Type: realtime.EventDisconnected})

	require.NoError(t, f.Close())
}

func TestDialWithoutBrokers(t *testing.T) {
	_, err := Dial(nil, "publications", "", nil)
	assert.ErrorIs(t, err, ErrNoBrokers)
}

func TestConfig(t *testing.T) {
	cfg := NewConfig("")
	assert.Equal(t, DefaultClientID, cfg.ClientID)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	assert.NoError(t, cfg.Validate())
}
