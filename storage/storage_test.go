package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	m := MarkerInput{}.Normalize()
	require.Equal(t, DefaultNickname, m.Nickname)
	require.Equal(t, DefaultLatitude, m.Latitude)
	require.Equal(t, DefaultLongitude, m.Longitude)
	require.Equal(t, "", m.Location)
	require.Equal(t, "", m.Message)
	require.Nil(t, m.Image)
}

func TestNormalizeKeepsValues(t *testing.T) {
	m := MarkerInput{
		Nickname:  ptr("A"),
		Location:  ptr("Beijing"),
		Latitude:  ptr(39.9),
		Longitude: ptr(116.4),
		Message:   ptr("hi"),
		Image:     ptr("http://img/1.jpg"),
	}.Normalize()
	require.Equal(t, "A", m.Nickname)
	require.Equal(t, "Beijing", m.Location)
	require.Equal(t, 39.9, m.Latitude)
	require.Equal(t, 116.4, m.Longitude)
	require.Equal(t, "hi", m.Message)
	require.Equal(t, "http://img/1.jpg", *m.Image)
}

func TestNormalizeEmptyStrings(t *testing.T) {
	m := MarkerInput{Nickname: ptr(""), Image: ptr("")}.Normalize()
	require.Equal(t, DefaultNickname, m.Nickname)
	require.Nil(t, m.Image)
}

func TestMarkerHasImage(t *testing.T) {
	require.False(t, Marker{}.HasImage())
	require.False(t, Marker{Image: ptr("")}.HasImage())
	require.True(t, Marker{Image: ptr("x")}.HasImage())
}
