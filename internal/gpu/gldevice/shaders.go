package gldevice

// drawVertexShader renders the pre-expanded fallback buffers, one
// instance per placement.
const drawVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;
layout (location = 3) in uint aMeshlet;
layout (location = 4) in mat4 aWorld;
layout (location = 8) in mat3 aNormalMatrix;

uniform mat4 uViewProj;

out vec3 vNormal;
out vec2 vUV;
flat out uint vMeshlet;

void main() {
	gl_Position = uViewProj * (aWorld * vec4(aPos, 1.0));
	vNormal = normalize(aNormalMatrix * aNormal);
	vUV = aUV;
	vMeshlet = aMeshlet;
}
`

// streamVertexShader passes through mesh-stage output, which is already
// in clip space.
const streamVertexShader = `
#version 410 core

layout (location = 0) in vec4 aClip;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;
layout (location = 3) in uint aMeshlet;

out vec3 vNormal;
out vec2 vUV;
flat out uint vMeshlet;

void main() {
	gl_Position = aClip;
	vNormal = aNormal;
	vUV = aUV;
	vMeshlet = aMeshlet;
}
`

const fragmentShader = `
#version 410 core

in vec3 vNormal;
in vec2 vUV;
flat in uint vMeshlet;

uniform vec3 uLightDir;
uniform int uShadeMode;
uniform sampler2D uTexture;

out vec4 FragColor;

vec3 clusterColor(uint id) {
	uint h = id * 2654435761u;
	h ^= h >> 16;
	h *= 2246822519u;
	h ^= h >> 13;
	vec3 c = vec3(float(h & 255u), float((h >> 8) & 255u), float((h >> 16) & 255u)) / 255.0;
	return 0.3 + 0.7 * c;
}

void main() {
	vec3 base = vec3(0.8);
	if (uShadeMode == 1) {
		base = clusterColor(vMeshlet);
	} else if (uShadeMode == 2) {
		base = texture(uTexture, vUV).rgb;
	}
	float ndl = max(dot(normalize(vNormal), normalize(uLightDir)), 0.0);
	FragColor = vec4(base * (0.25 + 0.75 * ndl), 1.0);
}
`
