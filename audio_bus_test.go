package main

import "testing"

func TestAudioBus_MixAndFade(t *testing.T) {
	bus := NewAudioBus()
	backend := NewGenesisBackend(ChipClocks{SN76489: 3579545}, VGM_SAMPLE_RATE)
	backend.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_ENABLE, 0x80)
	backend.WriteRegister(SPACE_PORT0, YM2612_REG_DAC_DATA, 0xFF)
	backend.Unmute(1.0)

	bus.Lock()
	bus.SetSource(backend)
	bus.Unlock()

	buf := make([]float32, 8)
	bus.ReadStereo(buf)
	if buf[0] <= 0 {
		t.Fatalf("mixed sample: %f", buf[0])
	}
	if buf[0] != buf[1] {
		t.Errorf("channels differ: %f / %f", buf[0], buf[1])
	}

	// Fade gain scales both channels together.
	bus.SetFadeGain(0)
	bus.ReadStereo(buf)
	if buf[0] != 0 || buf[1] != 0 {
		t.Errorf("faded samples: %f / %f", buf[0], buf[1])
	}
}

func TestAudioBus_FadeGainClamped(t *testing.T) {
	bus := NewAudioBus()
	bus.SetFadeGain(2.5)
	if bus.FadeGain() != 1.0 {
		t.Errorf("gain above 1 not clamped: %f", bus.FadeGain())
	}
	bus.SetFadeGain(-0.5)
	if bus.FadeGain() != 0 {
		t.Errorf("gain below 0 not clamped: %f", bus.FadeGain())
	}
}

func TestAudioBus_EmptyBusIsSilent(t *testing.T) {
	bus := NewAudioBus()
	buf := []float32{1, 1, 1, 1}
	bus.ReadStereo(buf)
	for i, v := range buf {
		if v != 0 {
			t.Errorf("sample %d: %f", i, v)
		}
	}
}
